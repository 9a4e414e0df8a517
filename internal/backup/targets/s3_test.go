package targets

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hellobirdie/hellobirdie/internal/conf"
)

// fakeS3 is a tiny in-memory S3 subset: PutObject, GetObject, DeleteObject
// and ListObjectsV2 with path-style addressing. List pages hold one object.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	fail    bool
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail {
		return xmlResponse(http.StatusInternalServerError,
			"<Error><Code>InternalError</Code><Message>boom</Message></Error>"), nil
	}

	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}

	switch {
	case req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2":
		return f.list(req), nil
	case req.Method == http.MethodPut:
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		if strings.Contains(req.Header.Get("Content-Encoding"), "aws-chunked") {
			body = decodeAWSChunked(body)
		}
		f.objects[key] = body
		return emptyResponse(http.StatusOK, http.Header{"ETag": {`"etag"`}}), nil
	case req.Method == http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			return xmlResponse(http.StatusNotFound, "<Error><Code>NoSuchKey</Code></Error>"), nil
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader(body)),
			Header: http.Header{
				"Content-Length": {strconv.Itoa(len(body))},
				"Last-Modified":  {time.Now().UTC().Format(http.TimeFormat)},
			},
		}, nil
	case req.Method == http.MethodDelete:
		delete(f.objects, key)
		return emptyResponse(http.StatusNoContent, http.Header{}), nil
	}
	return emptyResponse(http.StatusNotImplemented, http.Header{}), nil
}

func (f *fakeS3) list(req *http.Request) *http.Response {
	prefix := req.URL.Query().Get("prefix")
	after := req.URL.Query().Get("continuation-token")

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) && k > after {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult>`)
	if len(keys) > 1 {
		fmt.Fprintf(&b, "<IsTruncated>true</IsTruncated><NextContinuationToken>%s</NextContinuationToken>", keys[0])
		keys = keys[:1]
	} else {
		b.WriteString("<IsTruncated>false</IsTruncated>")
	}
	for _, k := range keys {
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2026-01-01T00:00:00Z</LastModified></Contents>",
			k, len(f.objects[k]))
	}
	b.WriteString("</ListBucketResult>")
	return xmlResponse(http.StatusOK, b.String())
}

func xmlResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": {"application/xml"}},
	}
}

func emptyResponse(status int, header http.Header) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(nil)), Header: header}
}

// decodeAWSChunked strips aws-chunked framing: <hex>[;ext]\r\n<data>\r\n ... 0\r\n<trailers>.
func decodeAWSChunked(b []byte) []byte {
	var out []byte
	for len(b) > 0 {
		line, rest, ok := bytes.Cut(b, []byte("\r\n"))
		if !ok {
			break
		}
		sizeHex, _, _ := bytes.Cut(line, []byte(";"))
		size, err := strconv.ParseInt(string(sizeHex), 16, 64)
		if err != nil || size == 0 || int64(len(rest)) < size {
			break
		}
		out = append(out, rest[:size]...)
		b = bytes.TrimPrefix(rest[size:], []byte("\r\n"))
	}
	return out
}

func newFakeS3Target(t *testing.T, prefix string) (*S3Target, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: make(map[string][]byte)}
	cfg, err := config.LoadDefaultConfig(t.Context(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	require.NoError(t, err)

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String("https://mock.s3.local")
		o.HTTPClient = &http.Client{Transport: fake}
		o.UsePathStyle = true
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.RetryMaxAttempts = 1
	})
	return NewS3TargetWithClient(client, "birds", prefix), fake
}

func TestS3Target_StoreAndList(t *testing.T) {
	t.Parallel()

	target, fake := newFakeS3Target(t, "/hellobirdie/")
	require.NoError(t, target.Validate())
	assert.Equal(t, "s3", target.Name())

	older := []byte("older snapshot")
	newer := []byte("newer snapshot")
	oldMeta := testMetadata("20260101T000000Z-aaaaaaaa", older)
	newMeta := testMetadata("20260301T000000Z-bbbbbbbb", newer)

	require.NoError(t, target.Store(t.Context(), oldMeta.Key(), bytes.NewReader(older), oldMeta))
	// A non-seekable reader is buffered before upload.
	require.NoError(t, target.Store(t.Context(), newMeta.Key(), io.MultiReader(bytes.NewReader(newer)), newMeta))

	assert.Equal(t, newer, fake.objects["hellobirdie/"+newMeta.Key()])
	assert.Contains(t, fake.objects, "hellobirdie/"+newMeta.ID+".meta.json")

	backups, err := target.List(t.Context())
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.Equal(t, newMeta.ID, backups[0].ID)
	assert.Equal(t, oldMeta.ID, backups[1].ID)
	assert.Equal(t, "s3", backups[0].Target)
	assert.Equal(t, "abc123", backups[0].Checksum)
}

func TestS3Target_ListSkipsBrokenMetadata(t *testing.T) {
	t.Parallel()

	target, fake := newFakeS3Target(t, "")
	data := []byte("snapshot")
	meta := testMetadata("20260101T000000Z-aaaaaaaa", data)
	require.NoError(t, target.Store(t.Context(), meta.Key(), bytes.NewReader(data), meta))
	fake.objects["20260202T000000Z-cccccccc.meta.json"] = []byte("{")
	fake.objects["unrelated.txt"] = []byte("x")

	backups, err := target.List(t.Context())
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, meta.ID, backups[0].ID)
}

func TestS3Target_Delete(t *testing.T) {
	t.Parallel()

	target, fake := newFakeS3Target(t, "backups")
	data := []byte("snapshot")
	meta := testMetadata("20260101T000000Z-aaaaaaaa", data)
	require.NoError(t, target.Store(t.Context(), meta.Key(), bytes.NewReader(data), meta))
	require.Len(t, fake.objects, 2)

	require.NoError(t, target.Delete(t.Context(), meta.ID))
	assert.Empty(t, fake.objects)

	assert.Error(t, target.Delete(t.Context(), "../x"))
}

func TestS3Target_Errors(t *testing.T) {
	t.Parallel()

	target, fake := newFakeS3Target(t, "")
	fake.fail = true

	data := []byte("snapshot")
	meta := testMetadata("20260101T000000Z-aaaaaaaa", data)
	err := target.Store(t.Context(), meta.Key(), bytes.NewReader(data), meta)
	require.Error(t, err)

	_, err = target.List(t.Context())
	require.Error(t, err)
}

func TestNewS3Target_RequiresBucket(t *testing.T) {
	t.Parallel()

	_, err := NewS3Target(context.Background(), &conf.S3BackupSettings{Region: "eu-north-1"})
	require.Error(t, err)

	assert.Error(t, NewS3TargetWithClient(nil, "", "").Validate())
}
