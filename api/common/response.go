package common

type Response struct {
	Timestamp int64  `json:"ts"`
	Code      int    `json:"code"`
	Msg       string `json:"msg"`
	Data      any    `json:"data"`
}
