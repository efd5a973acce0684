// Package fails keeps flat, append-only lists of wallets that failed, so they
// can be fed back in as private_keys.txt / proxies.txt later.
package fails

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

type Category string

const (
	FailedClaim       Category = "failed_claim"
	FailedCheckResult Category = "failed_check_result"
	FailedSetEnvProxy Category = "failed_set_env_proxy"
	UnexpectedErr     Category = "unexpected_err"
	FailedProof       Category = "failed_proof"
)

type Recorder struct {
	dir string
}

func NewRecorder(dir string) *Recorder {
	return &Recorder{dir: dir}
}

func (r *Recorder) PrivateKeysFile(category Category) string {
	return filepath.Join(r.dir, fmt.Sprintf("%s_pk.txt", category))
}

func (r *Recorder) ProxiesFile(category Category) string {
	return filepath.Join(r.dir, fmt.Sprintf("%s_proxies.txt", category))
}

// Record appends the wallet to both files of category. A wallet without a
// proxy gets an empty line so the two files stay aligned.
func (r *Recorder) Record(category Category, privateKey, proxy string) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", r.dir)
	}
	if err := appendLine(r.PrivateKeysFile(category), privateKey); err != nil {
		return err
	}
	return appendLine(r.ProxiesFile(category), proxy)
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}

	if _, err := fmt.Fprintln(f, line); err != nil {
		f.Close()
		return errors.Wrapf(err, "writing %s", path)
	}
	return f.Close()
}
