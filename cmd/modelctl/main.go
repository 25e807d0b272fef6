// modelctl is the offline model tool: it generates encryption keys,
// encrypts and verifies model artifacts, and packs dense model weights
// into the runtime format. It runs in build pipelines, never on user
// machines.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/dianalab/diana/internal/crypto"
	"github.com/dianalab/diana/internal/logger"
	"github.com/dianalab/diana/internal/mlrt"
	"github.com/dianalab/diana/internal/modelstore"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	log := logger.NewLogger("modelctl")

	var err error
	switch os.Args[1] {
	case "keygen":
		err = runKeygen()
	case "encrypt":
		err = runEncrypt(os.Args[2:], log)
	case "verify":
		err = runVerify(os.Args[2:], log)
	case "pack":
		err = runPack(os.Args[2:])
	case "version":
		fmt.Printf("modelctl %s (built %s, commit %s)\n", orNA(buildVersion), orNA(buildDate), orNA(buildCommit))
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal().Err(err).Str("command", os.Args[1]).Msg("command failed")
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: modelctl <command> [flags]

commands:
  keygen            print a fresh base64url encryption key
  encrypt           encrypt a model artifact
  verify            check that an encrypted artifact decrypts cleanly
  pack              pack dense weights (CSV) into the runtime format
  version           print build information`)
}

func runKeygen() error {
	key, err := crypto.GenerateKey()
	if err != nil {
		return err
	}

	fmt.Println(key)
	return nil
}

func secretFromEnv() ([]byte, error) {
	secret := os.Getenv("APP_ENCRYPTION_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("APP_ENCRYPTION_SECRET is not set")
	}
	return []byte(secret), nil
}

func runEncrypt(args []string, log *logger.Logger) error {
	fs := flag.NewFlagSet("encrypt", flag.ExitOnError)
	in := fs.String("in", "", "plaintext model path")
	out := fs.String("out", "", "encrypted artifact path")
	fs.Parse(args)

	if *in == "" || *out == "" {
		return fmt.Errorf("encrypt: -in and -out are required")
	}

	secret, err := secretFromEnv()
	if err != nil {
		return err
	}
	cipher, err := crypto.NewCipher(secret)
	if err != nil {
		return err
	}

	if err := modelstore.NewStore(cipher, log).EncryptFile(*in, *out); err != nil {
		return err
	}

	fmt.Printf("encrypted %s -> %s\n", *in, *out)
	return nil
}

func runVerify(args []string, log *logger.Logger) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	in := fs.String("in", "", "encrypted artifact path")
	fs.Parse(args)

	if *in == "" {
		return fmt.Errorf("verify: -in is required")
	}

	secret, err := secretFromEnv()
	if err != nil {
		return err
	}
	cipher, err := crypto.NewCipher(secret)
	if err != nil {
		return err
	}

	if !modelstore.NewStore(cipher, log).VerifyIntegrity(*in) {
		return fmt.Errorf("verify: %s failed integrity check", *in)
	}

	fmt.Printf("%s: OK\n", *in)
	return nil
}

// runPack reads one CSV row per class (bias first, then the flattened
// weight row) and writes the binary model the runtime loads.
func runPack(args []string) error {
	fs := flag.NewFlagSet("pack", flag.ExitOnError)
	in := fs.String("in", "", "weights CSV path")
	out := fs.String("out", "", "packed model path")
	channels := fs.Int("channels", 3, "input channels")
	height := fs.Int("height", 224, "input height")
	width := fs.Int("width", 224, "input width")
	fs.Parse(args)

	if *in == "" || *out == "" {
		return fmt.Errorf("pack: -in and -out are required")
	}

	weights, bias, err := readWeightsCSV(*in, *channels**height**width)
	if err != nil {
		return err
	}

	f, err := os.Create(*out)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := mlrt.Pack(f, *channels, *height, *width, weights, bias); err != nil {
		os.Remove(*out)
		return err
	}

	fmt.Printf("packed %d classes over %dx%dx%d -> %s\n", len(weights), *channels, *height, *width, *out)
	return nil
}

func readWeightsCSV(path string, inputLen int) ([][]float32, []float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse weights csv: %w", err)
	}

	var weights [][]float32
	var bias []float32
	for i, record := range records {
		if len(record) != inputLen+1 {
			return nil, nil, fmt.Errorf("row %d: %d values, want bias + %d weights", i, len(record), inputLen)
		}

		row := make([]float32, inputLen)
		b, err := parseFloat(record[0])
		if err != nil {
			return nil, nil, fmt.Errorf("row %d bias: %w", i, err)
		}
		for j, cell := range record[1:] {
			if row[j], err = parseFloat(cell); err != nil {
				return nil, nil, fmt.Errorf("row %d col %d: %w", i, j+1, err)
			}
		}

		weights = append(weights, row)
		bias = append(bias, b)
	}

	return weights, bias, nil
}

func parseFloat(s string) (float32, error) {
	v, err := strconv.ParseFloat(s, 32)
	return float32(v), err
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
