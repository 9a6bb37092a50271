package client

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"

	"github.com/cppla/cohort/errs"
	"github.com/cppla/cohort/uploads"
)

// Transport moves one file into durable storage. It never retries.
type Transport interface {
	Upload(ctx context.Context, id string, file LocalFile, onProgress func(percent int)) (uploads.AttachmentRef, error)
}

// HTTPTransport uploads through POST /uploads as a streamed multipart body.
type HTTPTransport struct {
	client *Client
}

func NewHTTPTransport(c *Client) *HTTPTransport {
	return &HTTPTransport{client: c}
}

// progressReader reports the share of total bytes read, never going backwards.
type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	last   int
	report func(int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.total > 0 && p.report != nil {
		p.read += int64(n)
		pct := int(p.read * 100 / p.total)
		if pct > 100 {
			pct = 100
		}
		if pct > p.last {
			p.last = pct
			p.report(pct)
		}
	}
	return n, err
}

func (t *HTTPTransport) Upload(ctx context.Context, id string, file LocalFile, onProgress func(percent int)) (uploads.AttachmentRef, error) {
	fail := func(status int, err error) (uploads.AttachmentRef, error) {
		return uploads.AttachmentRef{}, &errs.TransportError{FileName: file.Name(), Status: status, Err: err}
	}

	src, err := file.Open()
	if err != nil {
		return fail(0, err)
	}
	defer src.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := writeUploadForm(mw, id, file, &progressReader{r: src, total: file.Size(), report: onProgress})
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := t.client.newRequest(ctx, http.MethodPost, "/uploads", pr)
	if err != nil {
		pr.Close()
		return fail(0, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := t.client.http.Do(req)
	if err != nil {
		return fail(0, err)
	}
	var ref uploads.AttachmentRef
	if err := decode(resp, &ref); err != nil {
		if errs.IsTransport(err) {
			return uploads.AttachmentRef{}, err
		}
		// Server-side rejections of the file are transport failures for the uploader.
		return fail(resp.StatusCode, err)
	}
	return ref, nil
}

func writeUploadForm(mw *multipart.Writer, id string, file LocalFile, body io.Reader) error {
	if err := mw.WriteField("id", id); err != nil {
		return err
	}
	if err := mw.WriteField("size", strconv.FormatInt(file.Size(), 10)); err != nil {
		return err
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name()))
	h.Set("Content-Type", file.MimeType())
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, body)
	return err
}
