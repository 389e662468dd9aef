package gpgsig

import (
	"os"
)

func writeTempFile(data []byte) (string, error) {
	f, err := os.CreateTemp("", "tcprest-gpgsig-*.sig")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func removeTempFile(path string) {
	_ = os.Remove(path)
}
