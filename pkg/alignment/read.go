package alignment

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ReadFile reads a FASTA or PHYLIP alignment from path.
func ReadFile(path string) (*Alignment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Read reads a FASTA or PHYLIP alignment from r.
func Read(r io.Reader) (*Alignment, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse detects the format from the first non-blank character: '>' starts
// FASTA, a digit starts sequential (relaxed) PHYLIP.
func Parse(data []byte) (*Alignment, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, ErrEmpty
	}
	switch {
	case trimmed[0] == '>':
		return parseFASTA(trimmed)
	case trimmed[0] >= '0' && trimmed[0] <= '9':
		return parsePHYLIP(trimmed)
	}
	return nil, ErrFormat
}

func newScanner(data []byte) *bufio.Scanner {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	return sc
}

func parseFASTA(data []byte) (*Alignment, error) {
	var names []string
	var seqs []*strings.Builder
	sc := newScanner(data)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, ">") {
			fields := strings.Fields(line[1:])
			if len(fields) == 0 {
				return nil, fmt.Errorf("%w: sequence without a name", ErrFormat)
			}
			names = append(names, fields[0])
			seqs = append(seqs, &strings.Builder{})
			continue
		}
		if len(seqs) == 0 {
			return nil, fmt.Errorf("%w: sequence data before first header", ErrFormat)
		}
		for _, f := range strings.Fields(line) {
			seqs[len(seqs)-1].WriteString(f)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	out := make([]string, len(seqs))
	for i, b := range seqs {
		out[i] = b.String()
	}
	return New(names, out)
}

func parsePHYLIP(data []byte) (*Alignment, error) {
	sc := newScanner(data)
	if !sc.Scan() {
		return nil, ErrEmpty
	}
	header := strings.Fields(sc.Text())
	if len(header) < 2 {
		return nil, fmt.Errorf("%w: PHYLIP header needs taxon and site counts", ErrFormat)
	}
	ntax, err1 := strconv.Atoi(header[0])
	nsite, err2 := strconv.Atoi(header[1])
	if err1 != nil || err2 != nil || ntax <= 0 || nsite <= 0 {
		return nil, fmt.Errorf("%w: bad PHYLIP header %q", ErrFormat, sc.Text())
	}

	names := make([]string, 0, ntax)
	seqs := make([]string, 0, ntax)
	var cur strings.Builder
	for sc.Scan() && len(names) <= ntax {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if cur.Len() == 0 && len(names) == len(seqs) {
			names = append(names, fields[0])
			fields = fields[1:]
		}
		for _, f := range fields {
			cur.WriteString(f)
		}
		if cur.Len() >= nsite {
			seqs = append(seqs, cur.String())
			cur.Reset()
			if len(seqs) == ntax {
				break
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(seqs) != ntax {
		return nil, fmt.Errorf("%w: expected %d sequences, found %d", ErrFormat, ntax, len(seqs))
	}
	return New(names, seqs)
}
