package httputil

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hyperlane-xyz/hyperlane-localnet/hl-service/ioutil"
)

// Downloader fetches release artifacts.
type Downloader struct {
	Client     *resty.Client
	Progressor ioutil.Progressor
	MaxSize    int64
}

// NewDownloader returns a downloader with a retrying client.
func NewDownloader(timeout time.Duration, progressor ioutil.Progressor) *Downloader {
	return &Downloader{
		Client: resty.New().
			SetTimeout(timeout).
			SetRetryCount(3).
			SetRetryWaitTime(time.Second),
		Progressor: progressor,
	}
}

func (d *Downloader) Download(ctx context.Context, url string, out io.Writer) error {
	if out == nil {
		return fmt.Errorf("output writer is nil")
	}
	client := d.Client
	if client == nil {
		client = resty.New()
	}
	resp, err := client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return err
	}
	body := resp.RawBody()
	if body != nil {
		defer body.Close()
	}
	if resp.IsError() {
		return fmt.Errorf("download failed with status code %d: %s", resp.StatusCode(), resp.Status())
	}
	contentLength := resp.RawResponse.ContentLength
	if contentLength > 0 && d.MaxSize > 0 && contentLength > d.MaxSize {
		return fmt.Errorf("content length %d exceeds maximum allowed size %d", contentLength, d.MaxSize)
	}

	r := io.Reader(body)
	if d.MaxSize > 0 {
		r = io.LimitReader(body, d.MaxSize)
	}
	pr := &ioutil.ProgressReader{
		R:          r,
		Progressor: d.Progressor,
		Total:      contentLength,
	}
	if _, err := io.Copy(out, pr); err != nil {
		return fmt.Errorf("failed to write download: %w", err)
	}
	return nil
}
