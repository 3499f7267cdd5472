package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	imap "github.com/meszmate/imap-codec"
	"github.com/meszmate/imap-codec/client"
	"github.com/meszmate/imap-codec/wire"
)

func parseCommand() *cli.Command {
	return &cli.Command{
		Name:      "parse",
		Usage:     "frame and parse captured server output, one JSON object per response",
		ArgsUsage: "[file]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "chunk-size",
				Usage: "bytes per read, overrides chunk_size from the config",
			},
			&cli.BoolFlag{
				Name:  "metrics",
				Usage: "print codec metrics in text exposition format when done",
			},
		},
		Action: runParse,
	}
}

func tokenizeCommand() *cli.Command {
	return &cli.Command{
		Name:      "tokenize",
		Usage:     "tokenize response arguments and print the tree as JSON",
		ArgsUsage: "[text]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "response-code",
				Usage: "treat a leading [ as a status response code",
			},
		},
		Action: runTokenize,
	}
}

func compileCommand() *cli.Command {
	return &cli.Command{
		Name:      "compile",
		Usage:     "compile a YAML or JSON command document to wire bytes",
		ArgsUsage: "[file]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "redact", Usage: "print the logging rendering"},
			&cli.BoolFlag{Name: "chunks", Usage: "print each synchronizing chunk on its own line, quoted"},
			&cli.BoolFlag{Name: "literal-plus", Usage: "use {n+} for every literal"},
			&cli.BoolFlag{Name: "literal-minus", Usage: "use {n+} for literals up to 4096 bytes"},
		},
		Action: runCompile,
	}
}

// parseFailure is printed in place of a response that failed to parse.
type parseFailure struct {
	Error    string `json:"error"`
	Code     string `json:"code,omitempty"`
	Position *int   `json:"position,omitempty"`
	Input    string `json:"input,omitempty"`
}

func describeError(err error) parseFailure {
	f := parseFailure{Error: err.Error()}
	var se *wire.SyntaxError
	var fe *wire.FatalError
	switch {
	case errors.As(err, &se):
		pos := se.Pos
		f.Code = se.Code.String()
		f.Position = &pos
		f.Input = se.Input
	case errors.As(err, &fe):
		f.Code = fe.Code.String()
	}
	return f
}

func runParse(c *cli.Context) error {
	cfg := configFrom(c)
	log := newLogger(cfg.LogLevel, c.App.ErrWriter)

	chunk := cfg.ChunkSize
	if c.IsSet("chunk-size") {
		chunk = c.Int("chunk-size")
	}
	if chunk <= 0 {
		return errors.Errorf("chunk size must be positive, got %d", chunk)
	}

	in, closeInput, err := openInput(c)
	if err != nil {
		return err
	}
	defer closeInput()

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	reg := prometheus.NewRegistry()
	metrics := client.NewMetrics(reg)

	framer := wire.NewFramer(wire.WithMaxLiteralSize(cfg.MaxLiteralSize))
	stream := wire.NewStream(ctx, in, wire.WithReadSize(chunk), wire.WithFramer(framer))
	enc := json.NewEncoder(c.App.Writer)

	parsed, failed := 0, 0
	for p := range stream.Payloads() {
		metrics.ObservePayload(p)
		resp, err := wire.ParsePayload(p)
		p.Next()
		if err != nil {
			failed++
			metrics.ObserveParseError(err)
			log.Debug().Err(err).Msg("parse failed")
			if encErr := enc.Encode(describeError(err)); encErr != nil {
				return errors.Wrap(encErr, "write error")
			}
			if wire.IsFatal(err) {
				return errors.Wrap(err, "parse")
			}
			continue
		}
		parsed++
		if err := enc.Encode(resp); err != nil {
			return errors.Wrap(err, "write response")
		}
	}
	if err := stream.Err(); err != nil {
		if wire.IsFatal(err) {
			metrics.ObserveParseError(err)
		}
		return errors.Wrap(err, "read input")
	}

	log.Info().Int("parsed", parsed).Int("failed", failed).Msg("done")

	if c.Bool("metrics") {
		return writeMetrics(c.App.Writer, reg)
	}
	return nil
}

func runTokenize(c *cli.Context) error {
	cfg := configFrom(c)

	var text string
	if c.NArg() > 0 {
		text = strings.Join(c.Args().Slice(), " ")
	} else {
		data, err := io.ReadAll(c.App.Reader)
		if err != nil {
			return errors.Wrap(err, "read input")
		}
		text = strings.TrimRight(string(data), "\r\n")
	}

	attrs, err := wire.Tokenize(text, &wire.TokenizeOptions{
		ResponseCode:   c.Bool("response-code"),
		MaxLiteralSize: cfg.MaxLiteralSize,
	})
	if err != nil {
		_ = json.NewEncoder(c.App.Writer).Encode(describeError(err))
		return errors.Wrap(err, "tokenize")
	}
	if attrs == nil {
		attrs = []imap.Attribute{}
	}
	return json.NewEncoder(c.App.Writer).Encode(attrs)
}

func runCompile(c *cli.Context) error {
	cfg := configFrom(c)
	log := newLogger(cfg.LogLevel, c.App.ErrWriter)

	in, closeInput, err := openInput(c)
	if err != nil {
		return err
	}
	defer closeInput()

	data, err := io.ReadAll(in)
	if err != nil {
		return errors.Wrap(err, "read command")
	}
	var cmd imap.Command
	if err := yaml.Unmarshal(data, &cmd); err != nil {
		return errors.Wrap(err, "decode command")
	}
	if cmd.Tag == "" {
		return errors.New("command has no tag")
	}

	opts := wire.CompileOptions{
		LiteralPlus:  cfg.LiteralPlus,
		LiteralMinus: cfg.LiteralMinus,
	}
	if c.IsSet("literal-plus") {
		opts.LiteralPlus = c.Bool("literal-plus")
	}
	if c.IsSet("literal-minus") {
		opts.LiteralMinus = c.Bool("literal-minus")
	}
	log.Debug().Str("command", wire.LogString(&cmd)).Msg("compiling")

	w := c.App.Writer
	switch {
	case c.Bool("redact"):
		_, err = fmt.Fprintln(w, wire.LogString(&cmd))
	case c.Bool("chunks"):
		for _, chunk := range wire.CompileChunks(&cmd, opts) {
			if _, err = fmt.Fprintf(w, "%q\n", chunk); err != nil {
				break
			}
		}
	default:
		out := append(wire.Compile(&cmd, opts), '\r', '\n')
		_, err = w.Write(out)
	}
	return errors.Wrap(err, "write output")
}

func openInput(c *cli.Context) (io.Reader, func(), error) {
	name := c.Args().First()
	if name == "" || name == "-" {
		return c.App.Reader, func() {}, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open input")
	}
	return f, func() { f.Close() }, nil
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return errors.Wrap(err, "gather metrics")
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return errors.Wrap(err, "write metrics")
		}
	}
	return nil
}
