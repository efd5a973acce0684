package wallet

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"zkpepe_soft/blockchain"
	"zkpepe_soft/config"
)

// Entry is one line of private_keys.txt with the proxy on the same line of
// proxies.txt.
type Entry struct {
	Number     int
	PrivateKey string
	Proxy      string
}

// ReadLines returns the trimmed lines of path without trailing blank lines.
func ReadLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}

	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines, nil
}

// Pair matches keys and proxies by line index. Keys past the end of the
// proxy list get no proxy.
func Pair(keys, proxies []string) []Entry {
	entries := make([]Entry, 0, len(keys))
	for i, key := range keys {
		var p string
		if i < len(proxies) {
			p = proxies[i]
		}
		entries = append(entries, Entry{Number: i + 1, PrivateKey: key, Proxy: p})
	}
	return entries
}

// Load reads the configured key and proxy files and builds one wallet per
// usable key. Blank and # lines are skipped without shifting the pairing.
func Load(cfg config.Config, chain *blockchain.Client, log *zap.Logger, opts ...Option) ([]*Wallet, error) {
	keys, err := ReadLines(cfg.PrivateKeysFile)
	if err != nil {
		return nil, errors.Wrap(err, "reading private keys")
	}

	proxies, err := ReadLines(cfg.ProxiesFile)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.Wrap(err, "reading proxies")
		}
		log.Warn("Proxies file not found, running without proxies", zap.String("path", cfg.ProxiesFile))
	}

	var wallets []*Wallet
	for _, entry := range Pair(keys, proxies) {
		if entry.PrivateKey == "" || strings.HasPrefix(entry.PrivateKey, "#") {
			continue
		}

		w, err := New(cfg, entry.PrivateKey, entry.Number, entry.Proxy, chain, log, opts...)
		if err != nil {
			log.Error("Skipping wallet", zap.Int("number", entry.Number), zap.Error(err))
			continue
		}
		wallets = append(wallets, w)
	}

	log.Info("Wallets loaded",
		zap.Int("wallets", len(wallets)),
		zap.Int("proxies", len(proxies)),
	)
	return wallets, nil
}
