package airdrop

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	http_tls "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"zkpepe_soft/config"
	"zkpepe_soft/proxy"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Doer is the part of tls_client.HttpClient the airdrop API needs.
type Doer interface {
	Do(req *http_tls.Request) (*http_tls.Response, error)
}

type Client struct {
	http           Doer
	eligibilityURL string
	proofURL       string
}

// NewClient opens a browser-like session, routed through proxyURL when it is
// not empty.
func NewClient(cfg config.Config, proxyURL string) (*Client, error) {
	options := []tls_client.HttpClientOption{
		tls_client.WithTimeoutSeconds(int(cfg.HTTPTimeout / time.Second)),
		tls_client.WithClientProfile(profiles.Chrome_120),
		tls_client.WithNotFollowRedirects(),
		tls_client.WithCookieJar(tls_client.NewCookieJar()),
	}
	if proxyURL != "" {
		u, err := proxy.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		options = append(options, tls_client.WithProxyUrl(u.String()))
	}

	client, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), options...)
	if err != nil {
		return nil, errors.Wrap(err, "creating tls client")
	}

	return NewClientWithDoer(cfg, client), nil
}

func NewClientWithDoer(cfg config.Config, doer Doer) *Client {
	return &Client{
		http:           doer,
		eligibilityURL: cfg.EligibilityURL,
		proofURL:       cfg.ProofURL,
	}
}

// ClaimableAmount returns the token amount (display units) the address may
// claim. The endpoint answers with a one-element JSON array.
func (c *Client) ClaimableAmount(ctx context.Context, address common.Address) (*big.Rat, error) {
	body, err := c.get(ctx, fmt.Sprintf(c.eligibilityURL, strings.ToLower(address.Hex())))
	if err != nil {
		return nil, err
	}

	var amounts []jsoniter.Number
	if err := json.Unmarshal(body, &amounts); err != nil {
		return nil, errors.Wrapf(err, "parsing amount response %q", truncate(body))
	}
	if len(amounts) == 0 {
		return nil, errors.New("empty amount response")
	}

	amount, ok := new(big.Rat).SetString(string(amounts[0]))
	if !ok {
		return nil, errors.Errorf("invalid amount %q", amounts[0])
	}
	return amount, nil
}

// Proof returns the merkle proof for the address.
func (c *Client) Proof(ctx context.Context, address common.Address) ([]common.Hash, error) {
	body, err := c.get(ctx, fmt.Sprintf(c.proofURL, strings.ToLower(address.Hex())))
	if err != nil {
		return nil, err
	}

	var nodes []string
	if err := json.Unmarshal(body, &nodes); err != nil {
		return nil, errors.Wrapf(err, "parsing proof response %q", truncate(body))
	}
	if len(nodes) == 0 {
		return nil, errors.New("empty proof")
	}

	proof := make([]common.Hash, 0, len(nodes))
	for i, node := range nodes {
		b, err := decodeHash(node)
		if err != nil {
			return nil, errors.Wrapf(err, "proof node %d", i)
		}
		proof = append(proof, b)
	}
	return proof, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http_tls.NewRequestWithContext(ctx, http_tls.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("accept", "application/json, text/plain, */*")
	req.Header.Set("accept-language", "en-US,en;q=0.9")
	req.Header.Set("cache-control", "no-cache")
	req.Header.Set("pragma", "no-cache")
	req.Header.Set("referer", "https://www.zksyncpepe.com/airdrop")
	req.Header.Set("user-agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", url)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", url)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return body, nil
}

func decodeHash(s string) (common.Hash, error) {
	raw, err := hexutil.Decode(strings.TrimSpace(s))
	if err != nil {
		return common.Hash{}, errors.Wrapf(err, "decoding %q", s)
	}
	if len(raw) != common.HashLength {
		return common.Hash{}, errors.Errorf("%q is %d bytes, want %d", s, len(raw), common.HashLength)
	}
	return common.BytesToHash(raw), nil
}

func truncate(body []byte) string {
	const limit = 120
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
