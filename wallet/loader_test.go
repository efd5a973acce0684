package wallet

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"zkpepe_soft/blockchain"
	"zkpepe_soft/config"
)

const otherKey = "0x8f2a55949038a9610f50fb23b5883af3b4ecb3c3bb792cbcefbd1542c692be63"

func writeLines(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))
	return path
}

func TestReadLines(t *testing.T) {
	path := writeLines(t, t.TempDir(), "keys.txt", " 0xaa ", "", "0xbb\r", "", "")

	lines, err := ReadLines(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xaa", "", "0xbb"}, lines)
}

func TestPair(t *testing.T) {
	entries := Pair([]string{"k1", "k2", "k3"}, []string{"p1"})

	require.Len(t, entries, 3)
	assert.Equal(t, Entry{Number: 1, PrivateKey: "k1", Proxy: "p1"}, entries[0])
	assert.Equal(t, Entry{Number: 2, PrivateKey: "k2"}, entries[1])
	assert.Equal(t, Entry{Number: 3, PrivateKey: "k3"}, entries[2])

	assert.Empty(t, Pair(nil, []string{"p1"}))
}

func testConfig(t *testing.T, dir string) config.Config {
	cfg := config.DefaultConfig
	cfg.ContractAddress = "0x000000000000000000000000000000000000dEaD"
	cfg.PrivateKeysFile = filepath.Join(dir, "private_keys.txt")
	cfg.ProxiesFile = filepath.Join(dir, "proxies.txt")
	return cfg
}

func testChain(t *testing.T, cfg config.Config) *blockchain.Client {
	chain, err := blockchain.NewClient(cfg, zap.NewNop())
	require.NoError(t, err)
	return chain
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	writeLines(t, dir, "private_keys.txt", testKey, "# disabled", "not-a-key", otherKey)
	writeLines(t, dir, "proxies.txt", "user:pass@10.0.0.1:8080", "user:pass@10.0.0.2:8080")

	wallets, err := Load(cfg, testChain(t, cfg), zap.NewNop(), WithAirdropAPI(&fakeAPI{}))
	require.NoError(t, err)
	require.Len(t, wallets, 2)

	assert.Equal(t, 1, wallets[0].Number())
	assert.Equal(t, "user:pass@10.0.0.1:8080", wallets[0].Proxy())
	assert.Equal(t, testAddress, wallets[0].Address().Hex())

	// line 4 keeps its own number and has no proxy line
	assert.Equal(t, 4, wallets[1].Number())
	assert.Equal(t, otherKey, wallets[1].PrivateKey())
	assert.Empty(t, wallets[1].Proxy())
}

func TestLoadWithoutProxiesFile(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	writeLines(t, dir, "private_keys.txt", testKey)

	wallets, err := Load(cfg, testChain(t, cfg), zap.NewNop(), WithAirdropAPI(&fakeAPI{}))
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	assert.Empty(t, wallets[0].Proxy())
}

func TestLoadWithoutKeysFile(t *testing.T) {
	cfg := testConfig(t, t.TempDir())

	_, err := Load(cfg, testChain(t, cfg), zap.NewNop())
	require.Error(t, err)
}
