package it600

type GatewayError string

func (e GatewayError) Error() string {
	return string(e)
}

const (
	ErrAuthentication   = GatewayError("gateway rejected authentication")
	ErrConnection       = GatewayError("gateway could not be reached")
	ErrDeviceNotFound   = GatewayError("device not found")
	ErrUnsupportedValue = GatewayError("unsupported value")
	ErrInvalidEUID      = GatewayError("EUID must be 16 hexadecimal characters")
)
