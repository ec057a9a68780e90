// Package hexdump writes generated machine code as a continuous lowercase hex string.
package hexdump

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Write writes two lowercase hex digits per byte of code without separators.
func Write(writer io.Writer, code []byte) error {
	if _, err := hex.NewEncoder(writer).Write(code); err != nil {
		return fmt.Errorf("writing hex dump: %w", err)
	}
	return nil
}

// WriteFile writes the hex dump of code to the file with the given name.
func WriteFile(filename string, code []byte) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating dump file %s: %w", filename, err)
	}

	if err := Write(file, code); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing dump file %s: %w", filename, err)
	}
	return nil
}
