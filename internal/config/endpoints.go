package config

const (
	baseURLVar  = "API_BASE_URL"
	wsHostVar   = "WS_BASE_URL"
	qrTargetVar = "QR_TARGET"

	defaultBaseURL  = "https://interesnoitochka.ru/api/v1"
	defaultQRTarget = "https://t.me/chatttinnngggbot"
)

type Endpoints struct{}

var _ EndpointConfig = Endpoints{}

func (Endpoints) GetBaseURL() string {
	return GetEnv(baseURLVar, defaultBaseURL)
}

// GetLoginSocketBases returns the login handshake endpoints in fallback
// order: secure first, plain second.
func (Endpoints) GetLoginSocketBases() []string {
	if base := GetEnv(wsHostVar, ""); base != "" {
		return []string{base + "/ws/ws/session"}
	}
	return []string{
		"wss://interesnoitochka.ru/api/v1/ws/ws/session",
		"ws://interesnoitochka.ru/api/v1/ws/ws/session",
	}
}

func (Endpoints) GetChatSocketURL() string {
	if base := GetEnv(wsHostVar, ""); base != "" {
		return base + "/ws/ws/chats"
	}
	return "wss://interesnoitochka.ru/api/v1/ws/ws/chats"
}

func (Endpoints) GetQRTarget() string {
	return GetEnv(qrTargetVar, defaultQRTarget)
}
