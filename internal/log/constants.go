package log

const (
	KeyAppName            = "app"
	KeyCacheKey           = "cacheKey"
	KeyCart               = "cart"
	KeyCartID             = "cartId"
	KeyCartItemID         = "cartItemId"
	KeyCartItems          = "cartItems"
	KeyConfig             = "config"
	KeyDbURL              = "dbUrl"
	KeyOwnerID            = "ownerId"
	KeyPathValues         = "pathValues"
	KeyProcess            = "process"
	KeyProductID          = "productId"
	KeyQuantity           = "quantity"
	KeyRequestBody        = "requestBody"
	KeyRequestHeader      = "requestHeader"
	KeyRequestHost        = "host"
	KeyRequestID          = "requestId"
	KeyRequestIp          = "requesterIP"
	KeyRequestMethod      = "requestMethod"
	KeyRequestProcessedAt = "requestProcessedAt"
	KeyRequestURI         = "requestURI"
	KeyRequestURL         = "requestURL"
	KeySessionID          = "sessionId"
	KeySpanID             = "spanId"
	KeySubtotal           = "subtotal"
	KeyTag                = "tag"
	KeyToken              = "token"
	KeyTotal              = "total"
	KeyTraceID            = "traceId"
)
