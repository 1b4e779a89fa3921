package codes

// 业务返回码，HTTP 状态码统一为 200
const (
	CODE_SUCCESS = 0

	CODE_ERR_UNKNOWN       = 1000
	CODE_ERR_BAD_PARAMS    = 1001
	CODE_ERR_REQFORMAT     = 1002
	CODE_ERR_OBJ_NOT_FOUND = 1004
	CODE_ERR_LIMIT         = 1005
	CODE_ERR_PROCESSING    = 1006
	CODE_ERR_TIMEOUT       = 1007
)
