package feed

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/aras-services/gsa-adaptor/internal/apperr"
)

// datasourceNamePattern is the appliance's allowed datasource name shape.
var datasourceNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// ValidateDatasourceName rejects names the appliance would refuse.
func ValidateDatasourceName(name string) error {
	if !datasourceNamePattern.MatchString(name) {
		return apperr.New(apperr.KindInvalidInput, fmt.Sprintf("feed: invalid datasource name %q", name))
	}
	return nil
}

// multipartBoundary is fixed, not randomly generated: the appliance's feed
// endpoint accepts any boundary token, and pinning it lets the wire format
// below be built by hand rather than through mime/multipart.Writer, whose
// SetBoundary rejects "<<" (it only allows RFC 2046's boundary charset).
const multipartBoundary = "<<"

// Submitter POSTs feed XML to the appliance's /xmlfeed endpoint as
// multipart/form-data.
type Submitter struct {
	client  *http.Client
	feedURL string
	gzip    bool
}

// NewSubmitter builds a Submitter posting to feedURL (e.g.
// "http://gsahost:19900/xmlfeed"). client defaults to http.DefaultClient.
func NewSubmitter(client *http.Client, feedURL string, gzipEnabled bool) *Submitter {
	if client == nil {
		client = http.DefaultClient
	}
	return &Submitter{client: client, feedURL: feedURL, gzip: gzipEnabled}
}

// Submit posts one feed document under datasource/feedtype. Failures are
// classified as follows: an error building the multipart body is
// FailedWriting; any error from the HTTP round trip (connecting, sending the
// request body, or receiving the reply headers) is FailedToConnect; an error
// reading the reply body is FailedReadingReply; and a non-200 status or a
// body that is not literally "Success" is IllegalState.
func (s *Submitter) Submit(ctx context.Context, datasource, feedtype string, xmlBody []byte) error {
	if err := ValidateDatasourceName(datasource); err != nil {
		return err
	}

	body, err := buildMultipartBody(datasource, feedtype, xmlBody, s.gzip)
	if err != nil {
		return apperr.Wrap(apperr.KindFeedWrite, "feed: failed to build multipart body", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.feedURL, bytes.NewReader(body))
	if err != nil {
		return apperr.Wrap(apperr.KindFeedConnect, "feed: failed to build request", err)
	}
	req.Header.Set("Content-Type", "multipart/form-data; boundary="+multipartBoundary)
	if s.gzip {
		req.Header.Set("Content-Encoding", "gzip")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindFeedConnect, "feed: failed to connect to appliance", err)
	}
	defer resp.Body.Close()

	replyBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Wrap(apperr.KindFeedReadReply, "feed: failed to read appliance reply", err)
	}

	if resp.StatusCode != http.StatusOK || string(replyBody) != "Success" {
		return apperr.New(apperr.KindStateViolation, fmt.Sprintf(
			"feed: appliance rejected feed: status=%d body=%q", resp.StatusCode, truncate(replyBody, 256)))
	}
	return nil
}

// buildMultipartBody hand-assembles the three-part wire format: datasource,
// feedtype, then the (optionally gzipped) XML payload, each as a text/plain
// part except the payload which is text/xml.
func buildMultipartBody(datasource, feedtype string, xmlBody []byte, gzipPayload bool) ([]byte, error) {
	payload := xmlBody
	if gzipPayload {
		var gz bytes.Buffer
		w := gzip.NewWriter(&gz)
		if _, err := w.Write(xmlBody); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		payload = gz.Bytes()
	}

	var buf bytes.Buffer
	writeTextPart(&buf, "datasource", datasource)
	writeTextPart(&buf, "feedtype", feedtype)
	writeXMLPart(&buf, "data", payload)
	buf.WriteString("--" + multipartBoundary + "--\r\n")
	return buf.Bytes(), nil
}

func writeTextPart(buf *bytes.Buffer, name, value string) {
	buf.WriteString("--" + multipartBoundary + "\r\n")
	buf.WriteString(`Content-Disposition: form-data; name="` + name + `"` + "\r\n")
	buf.WriteString("Content-Type: text/plain\r\n\r\n")
	buf.WriteString(value + "\r\n")
}

func writeXMLPart(buf *bytes.Buffer, name string, value []byte) {
	buf.WriteString("--" + multipartBoundary + "\r\n")
	buf.WriteString(`Content-Disposition: form-data; name="` + name + `"` + "\r\n")
	buf.WriteString("Content-Type: text/xml\r\n\r\n")
	buf.Write(value)
	buf.WriteString("\r\n")
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
