package storage

import (
	"errors"
	"fmt"
)

const (
	DriverLocal      = "local"
	DriverCloudinary = "cloudinary"
)

// Options selects and configures a FileStore backend.
type Options struct {
	Driver           string
	Dir              string
	BaseURL          string
	CloudinaryURL    string
	CloudinaryFolder string
}

// Open builds the FileStore named by opts.Driver. An empty driver means local disk.
func Open(opts Options) (FileStore, error) {
	switch opts.Driver {
	case "", DriverLocal:
		return NewLocalStore(opts.Dir, opts.BaseURL)
	case DriverCloudinary:
		if opts.CloudinaryURL == "" {
			return nil, errors.New("cloudinary storage needs CLOUDINARY_URL")
		}
		return NewCloudinaryStore(opts.CloudinaryURL, opts.CloudinaryFolder)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
