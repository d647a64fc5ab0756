package source

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ancine-dash/internal/config"
)

const listBody = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>ancine</Name>
  <Prefix>dados/</Prefix>
  <KeyCount>2</KeyCount>
  <MaxKeys>1000</MaxKeys>
  <IsTruncated>false</IsTruncated>
  <Contents><Key>dados/a.csv</Key><Size>4</Size></Contents>
  <Contents><Key>dados/b.zip</Key><Size>9</Size></Contents>
</ListBucketResult>`

func TestS3Bucket_ListAndOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.TrimSuffix(r.URL.Path, "/") == "/ancine" && r.URL.Query().Get("list-type") == "2":
			assert.Equal(t, "dados/", r.URL.Query().Get("prefix"))
			w.Header().Set("Content-Type", "application/xml")
			_, _ = io.WriteString(w, listBody)
		case r.URL.Path == "/ancine/dados/a.csv":
			_, _ = io.WriteString(w, "a;b\n")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	b := newS3Bucket(config.StorageConfig{
		S3KeyID:    "key",
		S3Secret:   "secret",
		S3Endpoint: srv.URL,
	}, "ancine")

	objects, err := b.List(context.Background(), "dados/")
	require.NoError(t, err)
	assert.Equal(t, []Object{{Key: "dados/a.csv", Size: 4}, {Key: "dados/b.zip", Size: 9}}, objects)

	body, err := b.Open(context.Background(), "dados/a.csv")
	require.NoError(t, err)
	defer body.Close() //nolint:errcheck
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "a;b\n", string(data))

	_, err = b.Open(context.Background(), "dados/missing.csv")
	require.Error(t, err)
}
