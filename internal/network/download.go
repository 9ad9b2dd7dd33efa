package network

import (
	"context"
	"net/url"
	"path"

	"github.com/basecamp/netkit/internal/download"
	"github.com/basecamp/netkit/internal/neterr"
)

// FetchBytes returns the body of an unauthenticated GET for uri.
func (c *Client) FetchBytes(ctx context.Context, uri string) Result[[]byte] {
	data, err := c.transport.FetchBytes(ctx, uri)
	if err != nil {
		return Failure[[]byte](neterr.As(err, neterr.RequestFailed))
	}
	return Success(data)
}

// Download fetches uri and stores it in the download directory under the
// last segment of the URI path, replacing any existing file. It returns the
// stored path.
func (c *Client) Download(ctx context.Context, uri string) Result[string] {
	name, err := fileName(uri)
	if err != nil {
		return Failure[string](err)
	}

	tmp, err := c.transport.Download(ctx, uri)
	if err != nil {
		return Failure[string](neterr.As(err, neterr.FileDownloadFailed))
	}

	dest, err := c.sink.SaveFile(ctx, name, tmp)
	if err != nil {
		return Failure[string](neterr.As(err, neterr.FileSavingFailed))
	}
	c.logger.Debug("download saved", "uri", uri, "path", dest)
	return Success(dest)
}

// DownloadWithProgress streams uri into the download directory, reporting
// progress to sink. The destination file is only written once the stream
// completes.
func (c *Client) DownloadWithProgress(ctx context.Context, uri string, sink download.ProgressSink) Result[string] {
	name, err := fileName(uri)
	if err != nil {
		return Failure[string](err)
	}

	stream, err := c.transport.Open(ctx, uri)
	if err != nil {
		return Failure[string](neterr.As(err, neterr.FileDownloadFailed))
	}
	defer stream.Close()

	pr := download.NewProgressReader(stream, stream.Length, sink)
	dest, err := c.sink.Save(ctx, name, pr)
	if err != nil {
		return Failure[string](neterr.As(err, neterr.FileSavingFailed))
	}
	pr.Done()
	return Success(dest)
}

func fileName(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", neterr.Wrap(neterr.URLCreationFailed, err)
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." || name == "" {
		name = "download"
	}
	return name, nil
}
