// SPDX-License-Identifier: MPL-2.0

package sshkeys

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/exp/slices"
)

// KeyInfo describes one public key found in ~/.ssh.
type KeyInfo struct {
	Path        string
	Type        string
	Bits        int
	Fingerprint string
	Comment     string
	HasPrivate  bool
}

// List parses every *.pub file in dir. Unreadable or malformed files are
// skipped. Keys are ordered by path.
func List(dir string) ([]KeyInfo, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.pub"))
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	keys := make([]KeyInfo, 0, len(matches))
	for _, path := range matches {
		info, err := ReadPublicKey(path)
		if err != nil {
			continue
		}
		keys = append(keys, info)
	}
	slices.SortFunc(keys, func(a, b KeyInfo) int { return strings.Compare(a.Path, b.Path) })
	return keys, nil
}

// ReadPublicKey parses a single authorized_keys formatted public key file.
func ReadPublicKey(path string) (KeyInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return KeyInfo{}, err
	}
	pub, comment, _, _, err := ssh.ParseAuthorizedKey(data)
	if err != nil {
		return KeyInfo{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return KeyInfo{
		Path:        path,
		Type:        pub.Type(),
		Bits:        keyBits(pub),
		Fingerprint: ssh.FingerprintSHA256(pub),
		Comment:     comment,
		HasPrivate:  fileExists(strings.TrimSuffix(path, ".pub")),
	}, nil
}

func keyBits(pub ssh.PublicKey) int {
	cpk, ok := pub.(ssh.CryptoPublicKey)
	if !ok {
		return 0
	}
	switch k := cpk.CryptoPublicKey().(type) {
	case *rsa.PublicKey:
		return k.N.BitLen()
	case *ecdsa.PublicKey:
		return k.Curve.Params().BitSize
	}
	if pub.Type() == ssh.KeyAlgoED25519 {
		return 256
	}
	return 0
}
