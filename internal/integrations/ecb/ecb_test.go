package ecb

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/davyttu/confidance-crypto/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleXML = `<?xml version="1.0" encoding="UTF-8"?>
<gesmes:Envelope xmlns:gesmes="http://www.gesmes.org/xml/2002-08-01" xmlns="http://www.ecb.int/vocabulary/2002-08-01/eurofxref">
	<gesmes:subject>Reference rates</gesmes:subject>
	<Cube>
		<Cube time='2026-10-16'>
			<Cube currency='USD' rate='1.0921'/>
			<Cube currency='JPY' rate='161.12'/>
		</Cube>
	</Cube>
</gesmes:Envelope>`

func newTestClient(url string) *Client {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewClient(&config.Config{ECBURL: url}, log)
}

func TestParseRates(t *testing.T) {
	rates, err := parseRates([]byte(sampleXML))
	require.NoError(t, err)
	require.Len(t, rates, 2)
	assert.InDelta(t, 1.0921, rates["USD"].PerEUR, 1e-9)
	assert.Equal(t, "2026-10-16", rates["JPY"].Date.Format("2006-01-02"))

	_, err = parseRates([]byte("<Envelope/>"))
	assert.Error(t, err)
	_, err = parseRates([]byte("not xml"))
	assert.Error(t, err)
}

func TestGetRateCaches(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(sampleXML))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	rate, err := c.GetRate(context.Background(), "USD")
	require.NoError(t, err)
	assert.Equal(t, "USD", rate.Currency)

	_, err = c.GetRate(context.Background(), "JPY")
	require.NoError(t, err)
	assert.Equal(t, 1, hits)

	_, err = c.GetRate(context.Background(), "XYZ")
	assert.Error(t, err)
}

func TestGetRateUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetRate(context.Background(), "USD")
	assert.Error(t, err)
}
