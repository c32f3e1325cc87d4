package config

import (
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
)

var (
	encodingLock   sync.RWMutex
	currentCharMap = charmap.Windows1252
)

// SetEncoding selects the code page used for non UTF-8 texture paths.
func SetEncoding(name string) error {
	cm, err := findCharmap(name)
	if err != nil {
		return err
	}
	encodingLock.Lock()
	currentCharMap = cm
	encodingLock.Unlock()
	return nil
}

func findCharmap(name string) (*charmap.Charmap, error) {
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			if cm.String() == name {
				return cm, nil
			}
		}
	}
	return nil, errors.Errorf("Failed to find encoding %q", name)
}

func ListEncodings() []string {
	list := make([]string, 0)
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			list = append(list, cm.String())
		}
	}
	return list
}

func GetEncoding() *charmap.Charmap {
	encodingLock.RLock()
	defer encodingLock.RUnlock()
	return currentCharMap
}
