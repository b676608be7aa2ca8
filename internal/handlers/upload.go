package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"research-chat/internal/services"
)

// formUpload opens the multipart file stored under field. The caller closes it.
func formUpload(c *gin.Context, field string, maxBytes int64) (services.Upload, io.Closer, error) {
	if maxBytes > 0 {
		// multipart framing needs a little room on top of the file itself
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+1<<20)
	}
	header, err := c.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return services.Upload{}, nil, errors.New("file too large")
		}
		return services.Upload{}, nil, errors.New("no file uploaded")
	}
	f, err := header.Open()
	if err != nil {
		return services.Upload{}, nil, errors.New("could not read upload")
	}
	return uploadFrom(header, f), f, nil
}

func uploadFrom(header *multipart.FileHeader, f multipart.File) services.Upload {
	return services.Upload{Filename: header.Filename, Size: header.Size, Content: f}
}
