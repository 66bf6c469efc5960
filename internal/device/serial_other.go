//go:build !linux

package device

func SupportedBaud(int) bool { return false }

func Open(Config) (Port, error) {
	return nil, ErrUnsupported
}
