//go:build !unix && !windows

package memory

func mapMemory(int) ([]byte, error) {
	return nil, ErrUnsupported
}

func protect([]byte, bool) error {
	return ErrUnsupported
}

func unmapMemory([]byte) error {
	return ErrUnsupported
}
