package policy

import (
	"log"
	"os"
	"regexp"
	"strings"

	"github.com/dmp1ce/charge-lnd/internal/scid"
)

// FileScheme prefixes list entries that reference an identifier list file
// instead of a literal identifier.
const FileScheme = "file://"

var pubkeyRe = regexp.MustCompile("^[0-9a-z]{66}$")

func readListFile(ref string) ([]string, error) {
	path := strings.TrimPrefix(ref, FileScheme)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tokens []string
	for _, line := range strings.Split(strings.ReplaceAll(string(raw), ",", "\n"), "\n") {
		token, _, _ := strings.Cut(line, "#")
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		tokens = append(tokens, token)
	}
	return tokens, nil
}

// ReadNodeList loads a pubkey list file. Entries that are not exactly 66
// lowercase hex characters are logged and dropped; a read failure on the file
// itself propagates.
func ReadNodeList(ref string, logger *log.Logger) ([]string, error) {
	tokens, err := readListFile(ref)
	if err != nil {
		return nil, err
	}

	var pubkeys []string
	for _, token := range tokens {
		if !pubkeyRe.MatchString(token) {
			logger.Printf("ignored: invalid node pubkey %q in %q", token, ref)
			continue
		}
		pubkeys = append(pubkeys, token)
	}
	return pubkeys, nil
}

// ReadChanList loads a channel id list file. Entries that fail to parse as a
// short channel id are logged and dropped; a read failure propagates.
func ReadChanList(ref string, logger *log.Logger) ([]uint64, error) {
	tokens, err := readListFile(ref)
	if err != nil {
		return nil, err
	}

	var ids []uint64
	for _, token := range tokens {
		id, err := scid.Parse(token)
		if err != nil {
			logger.Printf("ignored: invalid channel id %q in %q", token, ref)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
