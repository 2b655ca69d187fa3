package api

// 文档注释：坐标请求体
// 背景：兼容既有前端在 GET 请求中携带 JSON 体的调用方式；同时接受查询参数。
// 约束：字段缺失与取值越界同样视为 INVALID_COORDINATE。
type coordinateRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// 错误响应：error 为稳定标签，message 仅供排查
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type healthBody struct {
	Lots        int    `json:"lots"`
	Version     uint64 `json:"version"`
	Fingerprint string `json:"fingerprint"`
}

type reloadBody struct {
	Lots int `json:"lots"`
}

// 请求层错误标签（坐标与空索引标签见 engine）
const (
	codeInvalidRequest = "INVALID_REQUEST"
	codeLoadFailure    = "LOAD_FAILURE"
	codeForbidden      = "FORBIDDEN"
	codeInternal       = "INTERNAL"
)
