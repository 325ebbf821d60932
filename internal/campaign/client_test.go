package campaign

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type noopSigner struct{}

func (noopSigner) Sign(_ context.Context, req *http.Request, _ []byte) error {
	req.Header.Set("Authorization", "signed")
	return nil
}

type fakeURLSigner struct{}

func (fakeURLSigner) PresignedGetURL(_ context.Context, bucket, key, _ string) (string, error) {
	return "https://presigned.example.com/" + bucket + "/" + key, nil
}

type recordedRequest struct {
	method string
	url    string
	body   []byte
}

type fakeDoer struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	body     string
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
	}
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{method: req.Method, url: req.URL.String(), body: body})
	f.mu.Unlock()
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader([]byte(f.body))),
	}, nil
}

func newTestClient(doer *fakeDoer) *Client {
	c := NewClient(nil, "api.example.com", noopSigner{}, fakeURLSigner{}, "userdata-bucket", "us-west-2")
	c.doer = doer
	return c
}

func TestCreateInjectsPresignedHashFileURL(t *testing.T) {
	doer := &fakeDoer{body: `{"campaignId":"c-123"}`}
	c := newTestClient(doer)

	id, err := c.Create(context.Background(), Order{
		HashType: 1000,
		HashFile: "uploads/hashes.txt",
	})
	require.NoError(t, err)
	require.Equal(t, "c-123", id)

	require.Len(t, doer.requests, 1)
	req := doer.requests[0]
	require.Equal(t, http.MethodPost, req.method)
	require.Equal(t, "https://api.example.com/v1/userproxy/campaign", req.url)

	var sent Order
	require.NoError(t, json.Unmarshal(req.body, &sent))
	require.Equal(t, "https://presigned.example.com/userdata-bucket/self/uploads/hashes.txt", sent.HashFileURL)
}

func TestGetMissingCampaignReturnsNil(t *testing.T) {
	doer := &fakeDoer{status: http.StatusNotFound, body: `{"msg":"not found"}`}
	c := newTestClient(doer)

	status, err := c.Get(context.Background(), "gone")
	require.NoError(t, err)
	require.Nil(t, status)
}

func TestStartAndCancelUseCampaignRoutes(t *testing.T) {
	doer := &fakeDoer{body: `{"success":true}`}
	c := newTestClient(doer)

	require.NoError(t, c.Start(context.Background(), "c-9"))
	require.NoError(t, c.Cancel(context.Background(), "c-9"))

	require.Len(t, doer.requests, 2)
	require.Equal(t, http.MethodPut, doer.requests[0].method)
	require.Equal(t, http.MethodDelete, doer.requests[1].method)
	require.Equal(t, "https://api.example.com/v1/userproxy/campaign/c-9", doer.requests[0].url)
}

func TestIsTerminalStatusCaseInsensitive(t *testing.T) {
	require.True(t, IsTerminalStatus("Completed"))
	require.True(t, IsTerminalStatus("ERROR"))
	require.False(t, IsTerminalStatus("running"))
	require.False(t, IsTerminalStatus(StatusAvailable))
}

func TestAllNodesTerminal(t *testing.T) {
	var nilStatus *Status
	require.False(t, nilStatus.AllNodesTerminal())
	require.False(t, (&Status{}).AllNodesTerminal(), "empty node list is not all-done")

	s := &Status{Nodes: []Node{{Status: "COMPLETED"}, {Status: "error"}}}
	require.True(t, s.AllNodesTerminal())

	s.Nodes = append(s.Nodes, Node{Status: "running"})
	require.False(t, s.AllNodesTerminal())
}
