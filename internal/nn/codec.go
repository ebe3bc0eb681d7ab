package nn

import (
	"bufio"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
)

// FileName is the on-disk name of a persisted network with the given id.
func FileName(id int) string {
	return fmt.Sprintf("missile%d.ai", id)
}

// WriteTo writes fitness, then biases, then weights, one value per line, in
// the order Mutate visits them.
func (n *Network) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var written int64
	writeValue := func(v float64) error {
		c, err := bw.WriteString(strconv.FormatFloat(v, 'g', -1, 64) + "\n")
		written += int64(c)
		return err
	}

	if err := writeValue(n.Fitness); err != nil {
		return written, err
	}
	for l := range n.Biases {
		for _, b := range n.Biases[l] {
			if err := writeValue(b); err != nil {
				return written, err
			}
		}
	}
	for l := range n.Weights {
		for j := range n.Weights[l] {
			for _, w := range n.Weights[l][j] {
				if err := writeValue(w); err != nil {
					return written, err
				}
			}
		}
	}
	return written, bw.Flush()
}

// ReadFrom reads the format produced by WriteTo into an already-allocated
// network of the same topology.
func (n *Network) ReadFrom(r io.Reader) (int64, error) {
	scanner := bufio.NewScanner(r)
	var read int64
	line := 0
	next := func() (float64, error) {
		for scanner.Scan() {
			read += int64(len(scanner.Bytes())) + 1
			line++
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}
			v, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return 0, fmt.Errorf("line %d: %w", line, err)
			}
			return v, nil
		}
		if err := scanner.Err(); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("line %d: %w", line+1, io.ErrUnexpectedEOF)
	}

	fitness, err := next()
	if err != nil {
		return read, err
	}
	biases := make([][]float64, len(n.Biases))
	for l := range n.Biases {
		biases[l] = make([]float64, len(n.Biases[l]))
		for j := range biases[l] {
			if biases[l][j], err = next(); err != nil {
				return read, err
			}
		}
	}
	weights := make([][][]float64, len(n.Weights))
	for l := range n.Weights {
		weights[l] = make([][]float64, len(n.Weights[l]))
		for j := range n.Weights[l] {
			weights[l][j] = make([]float64, len(n.Weights[l][j]))
			for k := range weights[l][j] {
				if weights[l][j][k], err = next(); err != nil {
					return read, err
				}
			}
		}
	}

	n.Fitness = fitness
	n.Biases = biases
	n.Weights = weights
	return read, nil
}

// Save always overwrites path.
func (n *Network) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := n.WriteTo(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("save network %d: %w", n.ID, err)
	}
	return f.Close()
}

// Load replaces fitness, biases and weights from path. A missing file is not
// an error: the network keeps its random initialization.
func (n *Network) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	defer f.Close()

	if _, err := n.ReadFrom(f); err != nil {
		return fmt.Errorf("load network %d from %s: %w", n.ID, path, err)
	}
	return nil
}

// Fingerprint hashes biases and weights. Identical clones share a fingerprint.
func (n *Network) Fingerprint() string {
	h := sha256.New()
	var buf [8]byte
	put := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = h.Write(buf[:])
	}
	for l := range n.Biases {
		for _, b := range n.Biases[l] {
			put(b)
		}
	}
	for l := range n.Weights {
		for j := range n.Weights[l] {
			for _, w := range n.Weights[l][j] {
				put(w)
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
