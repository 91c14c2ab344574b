package dnstxt

import (
	"fmt"

	"github.com/MrEthical07/goNameAuth/resolver"
	"golang.org/x/net/idna"
)

func toASCII(name string) (string, error) {
	ascii, err := idna.Lookup.ToASCII(name)
	if err != nil {
		return "", fmt.Errorf("%w: %v", resolver.ErrInvalidName, err)
	}
	return ascii, nil
}
