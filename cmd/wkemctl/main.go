// wkemctl is the command-line driver for the witness key encapsulation
// mechanism: encap/decap against raw R1CS+witness files, and
// encrypt/decrypt against the combined AEAD frame format, plus a
// selfcheck subcommand that exercises the whole stack end to end.
package main

import (
	"crypto/rand"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/flyinglimao/go-wkem/internal/circuit"
	"github.com/flyinglimao/go-wkem/internal/envelope"
	"github.com/flyinglimao/go-wkem/internal/mapper"
	"github.com/flyinglimao/go-wkem/internal/r1cs"
	"github.com/flyinglimao/go-wkem/internal/symtab"
	"github.com/flyinglimao/go-wkem/internal/wkem"
	"github.com/flyinglimao/go-wkem/internal/witness"
	"github.com/flyinglimao/go-wkem/internal/workerpool"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "encap":
		err = runEncap(os.Args[2:])
	case "decap":
		err = runDecap(os.Args[2:])
	case "encrypt":
		err = runEncrypt(os.Args[2:])
	case "decrypt":
		err = runDecrypt(os.Args[2:])
	case "selfcheck":
		err = runSelfcheck(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: wkemctl <encap|decap|encrypt|decrypt|selfcheck> [flags]")
}

func runEncap(args []string) error {
	fs := flag.NewFlagSet("encap", flag.ExitOnError)
	circuitPath := fs.String("circuit", "", "path to the r1cs circuit file")
	inputPath := fs.String("input", "", "path to the public-input JSON file")
	symPath := fs.String("sym", "", "path to the .sym symbol table (optional)")
	sigmaOut := fs.String("sigma", "sigma.bin", "output path for the ciphertext (sigma)")
	keyOut := fs.String("key", "key.bin", "output path for the recovered key")
	logLevel := fs.String("log-level", "info", "log level")
	logFile := fs.String("log-file", "", "path to a log file (optional)")
	auditFile := fs.String("audit-log", "", "path to an audit log file (optional)")
	configPath := fs.String("config", "", "path to the wkemctl config file (optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger, err := NewLogger(*logLevel, *logFile, *auditFile)
	if err != nil {
		return err
	}
	defer logger.Close()
	metrics := NewMetricsCollector()
	gate, err := gateFromConfig(*configPath)
	if err != nil {
		return err
	}

	logger.Info("loading r1cs circuit from %s", *circuitPath)
	raw, err := os.ReadFile(*circuitPath)
	if err != nil {
		return fmt.Errorf("reading circuit: %w", err)
	}
	file, err := r1cs.Parse(raw)
	if err != nil {
		return fmt.Errorf("parsing circuit: %w", err)
	}
	logger.Info("constraints=%d wires=%d public=%d", file.Header.NConstraints, file.Header.NWires, file.Header.NPublic())

	pubInputs, err := loadPublicInputs(*inputPath, *symPath, file)
	if err != nil {
		return fmt.Errorf("loading public inputs: %w", err)
	}

	circ := &circuit.R1CSCircuit{File: file, PublicInputs: pubInputs}

	start := time.Now()
	sigma, key, err := wkem.Encap(circ, rand.Reader, gate)
	metrics.RecordEncap(time.Since(start))
	if err != nil {
		metrics.RecordError("encap")
		return fmt.Errorf("encap: %w", err)
	}

	if err := os.WriteFile(*sigmaOut, sigma.Serialize(), 0644); err != nil {
		return fmt.Errorf("writing sigma: %w", err)
	}
	if err := os.WriteFile(*keyOut, key[:], 0600); err != nil {
		return fmt.Errorf("writing key: %w", err)
	}
	logger.Info("encap complete: sigma=%s key=%s", *sigmaOut, *keyOut)
	logger.Audit("encap", map[string]interface{}{"circuit": *circuitPath, "sigma": *sigmaOut})
	return nil
}

func runDecap(args []string) error {
	fs := flag.NewFlagSet("decap", flag.ExitOnError)
	circuitPath := fs.String("circuit", "", "path to the r1cs circuit file")
	witnessPath := fs.String("witness", "", "path to the wtns witness file")
	sigmaPath := fs.String("sigma", "sigma.bin", "path to the ciphertext (sigma)")
	keyOut := fs.String("key", "key.bin", "output path for the recovered key")
	logLevel := fs.String("log-level", "info", "log level")
	logFile := fs.String("log-file", "", "path to a log file (optional)")
	auditFile := fs.String("audit-log", "", "path to an audit log file (optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger, err := NewLogger(*logLevel, *logFile, *auditFile)
	if err != nil {
		return err
	}
	defer logger.Close()
	metrics := NewMetricsCollector()

	circ, sigma, err := loadDecapInputs(*circuitPath, *witnessPath, *sigmaPath)
	if err != nil {
		return err
	}

	start := time.Now()
	key, err := wkem.Decap(circ, sigma)
	metrics.RecordDecap(time.Since(start))
	if err != nil {
		metrics.RecordError("decap")
		logger.Audit("decap_failed", map[string]interface{}{"circuit": *circuitPath, "error": err.Error()})
		return fmt.Errorf("decap: %w", err)
	}

	if err := os.WriteFile(*keyOut, key[:], 0600); err != nil {
		return fmt.Errorf("writing key: %w", err)
	}
	logger.Info("decap complete: key=%s", *keyOut)
	logger.Audit("decap", map[string]interface{}{"circuit": *circuitPath, "sigma": *sigmaPath})
	return nil
}

func runEncrypt(args []string) error {
	fs := flag.NewFlagSet("encrypt", flag.ExitOnError)
	circuitPath := fs.String("circuit", "", "path to the r1cs circuit file")
	inputPath := fs.String("input", "", "path to the public-input JSON file")
	symPath := fs.String("sym", "", "path to the .sym symbol table (optional)")
	messagePath := fs.String("message", "", "path to the plaintext message file")
	outPath := fs.String("out", "ciphertext.bin", "output path for the combined frame")
	includePublic := fs.Bool("embed-public", false, "embed the public input JSON in the frame")
	configPath := fs.String("config", "", "path to the wkemctl config file (optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	gate, err := gateFromConfig(*configPath)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(*circuitPath)
	if err != nil {
		return fmt.Errorf("reading circuit: %w", err)
	}
	file, err := r1cs.Parse(raw)
	if err != nil {
		return fmt.Errorf("parsing circuit: %w", err)
	}

	inputJSON, err := os.ReadFile(*inputPath)
	if err != nil {
		return fmt.Errorf("reading input json: %w", err)
	}
	pubInputs, err := loadPublicInputs(*inputPath, *symPath, file)
	if err != nil {
		return fmt.Errorf("loading public inputs: %w", err)
	}

	circ := &circuit.R1CSCircuit{File: file, PublicInputs: pubInputs}
	sigma, key, err := wkem.Encap(circ, rand.Reader, gate)
	if err != nil {
		return fmt.Errorf("encap: %w", err)
	}

	message, err := os.ReadFile(*messagePath)
	if err != nil {
		return fmt.Errorf("reading message: %w", err)
	}

	var extra []byte
	if *includePublic {
		extra = inputJSON
	}
	frame, err := envelope.EncryptFrame(key[:], sigma.Serialize(), message, extra)
	if err != nil {
		return fmt.Errorf("encrypting frame: %w", err)
	}
	if err := os.WriteFile(*outPath, frame, 0644); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	fmt.Printf("encrypted frame written to %s (%d bytes)\n", *outPath, len(frame))
	return nil
}

func runDecrypt(args []string) error {
	fs := flag.NewFlagSet("decrypt", flag.ExitOnError)
	circuitPath := fs.String("circuit", "", "path to the r1cs circuit file")
	witnessPath := fs.String("witness", "", "path to the wtns witness file")
	framePath := fs.String("in", "ciphertext.bin", "path to the combined frame")
	outPath := fs.String("out", "message.out", "output path for the decrypted message")
	if err := fs.Parse(args); err != nil {
		return err
	}

	raw, err := os.ReadFile(*framePath)
	if err != nil {
		return fmt.Errorf("reading frame: %w", err)
	}
	frame, err := envelope.DecodeFrame(raw)
	if err != nil {
		return fmt.Errorf("decoding frame: %w", err)
	}

	sigma, err := wkem.Deserialize(frame.WkemCiphertext)
	if err != nil {
		return fmt.Errorf("deserializing sigma: %w", err)
	}

	circuitRaw, err := os.ReadFile(*circuitPath)
	if err != nil {
		return fmt.Errorf("reading circuit: %w", err)
	}
	file, err := r1cs.Parse(circuitRaw)
	if err != nil {
		return fmt.Errorf("parsing circuit: %w", err)
	}
	witnessRaw, err := os.ReadFile(*witnessPath)
	if err != nil {
		return fmt.Errorf("reading witness: %w", err)
	}
	full, err := witness.Parse(witnessRaw)
	if err != nil {
		return fmt.Errorf("parsing witness: %w", err)
	}

	circ := &circuit.R1CSCircuit{File: file, Full: full}
	key, err := wkem.Decap(circ, sigma)
	if err != nil {
		return fmt.Errorf("decap: %w", err)
	}

	plaintext, err := envelope.Unwrap(key[:], frame.AEADCiphertext)
	if err != nil {
		return fmt.Errorf("unwrap: %w", err)
	}
	if err := os.WriteFile(*outPath, plaintext, 0644); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	fmt.Printf("decrypted message written to %s (%d bytes)\n", *outPath, len(plaintext))
	return nil
}

// runSelfcheck drives an end-to-end Encap/Decap round trip over the
// identity circuit and reports component health for the codec, QAP,
// and WKEM-core layers.
func runSelfcheck(args []string) error {
	fs := flag.NewFlagSet("selfcheck", flag.ExitOnError)
	_ = fs.Parse(args)

	hc := NewHealthChecker(version)

	var secret, pub fr.Element
	secret.SetUint64(42)
	pub = secret

	hc.RegisterComponent("r1cs-codec", func() error {
		rc := identityR1CSFile()
		raw := r1cs.Emit(rc)
		parsed, err := r1cs.Parse(raw)
		if err != nil {
			return err
		}
		if parsed.Header.NConstraints != rc.Header.NConstraints {
			return fmt.Errorf("round-trip constraint count mismatch")
		}
		return nil
	})

	hc.RegisterComponent("witness-codec", func() error {
		elems := []fr.Element{fr.One(), secret, secret}
		raw := witness.Emit(elems, 32)
		parsed, err := witness.Parse(raw)
		if err != nil {
			return err
		}
		if len(parsed) != len(elems) {
			return fmt.Errorf("round-trip witness length mismatch")
		}
		return nil
	})

	var sigma *wkem.CRS
	hc.RegisterComponent("wkem-core", func() error {
		encapCirc := &circuit.IdentityCircuit{Public: &pub}
		s, _, err := wkem.Encap(encapCirc, rand.Reader, nil)
		if err != nil {
			return err
		}
		sigma = s

		decapCirc := &circuit.IdentityCircuit{Public: &pub, Secret: &secret}
		if _, err := wkem.Decap(decapCirc, sigma); err != nil {
			return err
		}
		return nil
	})

	hc.RegisterComponent("qap-engine", func() error {
		// CheckHealth runs checks in map order, so wkem-core may not have
		// produced sigma yet; run an Encap here in that case.
		if sigma == nil {
			s, _, err := wkem.Encap(&circuit.IdentityCircuit{Public: &pub}, rand.Reader, nil)
			if err != nil {
				return err
			}
			sigma = s
		}
		if len(sigma.PhiQuery) == 0 {
			return fmt.Errorf("empty phi query: QAP accumulation did not run")
		}
		return nil
	})

	health := hc.CheckHealth()
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(health); err != nil {
		return err
	}
	if health.OverallStatus != Healthy {
		return fmt.Errorf("selfcheck reported status %s", health.OverallStatus)
	}
	return nil
}

// gateFromConfig loads a config file (creating a default one if
// absent, per LoadConfig's shape) and builds a workerpool.Gate sized
// to its MaxConcurrency, bounding the QAP accumulation parallelism.
// An empty configPath skips config entirely and runs Encap on the
// calling goroutine (gate == nil).
func gateFromConfig(configPath string) (*workerpool.Gate, error) {
	if configPath == "" {
		return nil, nil
	}
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return workerpool.New(cfg.MaxConcurrency), nil
}

func identityR1CSFile() *r1cs.File {
	one := fr.One()
	return &r1cs.File{
		Header: r1cs.Header{
			FieldSize:    32,
			Prime:        make([]byte, 32),
			NWires:       3,
			NPubIn:       1,
			NConstraints: 1,
		},
		Constraints: []r1cs.Constraint{{
			A: r1cs.LinearCombination{{Wire: 2, Coef: one}},
			B: r1cs.LinearCombination{{Wire: 0, Coef: one}},
			C: r1cs.LinearCombination{{Wire: 1, Coef: one}},
		}},
		Wire2Label: []uint64{0, 1, 2},
	}
}

func loadPublicInputs(inputPath, symPath string, file *r1cs.File) ([]fr.Element, error) {
	raw, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, err
	}
	var inputs map[string]any
	if err := json.Unmarshal(raw, &inputs); err != nil {
		return nil, fmt.Errorf("invalid input JSON: %w", err)
	}

	ell := int(file.Header.NPublic())
	if symPath == "" {
		return mapper.Flatten(inputs, ell)
	}

	symRaw, err := os.ReadFile(symPath)
	if err != nil {
		return nil, err
	}
	table, err := symtab.Parse(symRaw)
	if err != nil {
		return nil, err
	}
	return mapper.MapWithTable(inputs, table, ell)
}

func loadDecapInputs(circuitPath, witnessPath, sigmaPath string) (*circuit.R1CSCircuit, *wkem.CRS, error) {
	raw, err := os.ReadFile(circuitPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading circuit: %w", err)
	}
	file, err := r1cs.Parse(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing circuit: %w", err)
	}

	witnessRaw, err := os.ReadFile(witnessPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading witness: %w", err)
	}
	full, err := witness.Parse(witnessRaw)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing witness: %w", err)
	}

	sigmaRaw, err := os.ReadFile(sigmaPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading sigma: %w", err)
	}
	sigma, err := wkem.Deserialize(sigmaRaw)
	if err != nil {
		return nil, nil, fmt.Errorf("deserializing sigma: %w", err)
	}

	return &circuit.R1CSCircuit{File: file, Full: full}, sigma, nil
}
