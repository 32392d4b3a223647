//go:build !linux

package kms

func enumerateConnector(fd uintptr, id uint32) (*Connector, error) {
	return nil, errUnsupported
}
