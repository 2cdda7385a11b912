// human readable and writable stdlib types
// which can be used inside config file
package model

import (
	"errors"
	"net/url"
	"os"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

type Duration struct {
	time.Duration
}

func (d Duration) AsDuration() time.Duration {
	return d.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	if d == nil {
		return errors.New("can't unmarshal to nil")
	}
	expanded := os.ExpandEnv(string(text))
	if expanded == "" {
		return errors.New("can't be empty")
	}
	parsed, err := time.ParseDuration(expanded)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	if d.Duration == 0 {
		return []byte{}, nil
	}
	return []byte(d.Duration.String()), nil
}

// Charset is a text encoding named by its IANA registry name, for
// example ISO-8859-1 or UTF-8.
type Charset struct {
	encoding.Encoding
}

func (c Charset) AsEncoding() encoding.Encoding {
	return c.Encoding
}

func (c *Charset) UnmarshalText(text []byte) error {
	if c == nil {
		return errors.New("can't unmarshal to nil")
	}
	name := os.ExpandEnv(string(text))
	if name == "" {
		return errors.New("can't be empty")
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return err
	}
	if enc == nil {
		// registered name without an implementation
		return errors.New("charset " + name + " has no decoder")
	}
	c.Encoding = enc
	return nil
}

func (c Charset) MarshalText() ([]byte, error) {
	if c.Encoding == nil {
		return []byte{}, nil
	}
	name, err := ianaindex.IANA.Name(c.Encoding)
	if err != nil {
		return nil, err
	}
	return []byte(name), nil
}

type URL struct {
	*url.URL
}

func (u URL) AsURL() *url.URL {
	return u.URL
}

func (u *URL) UnmarshalText(text []byte) error {
	if u == nil {
		return errors.New("can't unmarshal to nil")
	}
	parsed, err := url.Parse(os.ExpandEnv(string(text)))
	if err != nil {
		return err
	}
	u.URL = parsed
	return nil
}

func (u URL) MarshalText() ([]byte, error) {
	if u.URL == nil {
		return []byte{}, nil
	}
	return []byte(u.String()), nil
}
