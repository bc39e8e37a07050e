package dto

// WebhookRequest 网关回调载荷。只取事件类型和资源 ID，
// 详情一律回查网关，不信任回调内容。
type WebhookRequest struct {
	Type string      `json:"type"`
	Data WebhookData `json:"data"`
}

type WebhookData struct {
	ID string `json:"id"`
}
