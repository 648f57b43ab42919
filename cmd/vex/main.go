package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	vex "github.com/vexcodec/vex-go"
)

type cli struct {
	Encode  encodeCmd  `cmd:"" help:"Encode JSON into a transport string."`
	Decode  decodeCmd  `cmd:"" help:"Decode a transport string into JSON."`
	Encrypt encryptCmd `cmd:"" help:"Encrypt raw input into a transport string."`
	Decrypt decryptCmd `cmd:"" help:"Decrypt a transport string into raw output."`
	Inspect inspectCmd `cmd:"" help:"Show the binary layout of a transport string."`
}

type encodeCmd struct {
	Input string `arg:"" optional:"" help:"Input file, or - for stdin." default:"-"`
	Key   string `short:"k" help:"Cipher key."`
	Omit  bool   `help:"Omit entries with no encoding instead of failing."`
}

type decodeCmd struct {
	Input string `arg:"" optional:"" help:"Input file, or - for stdin." default:"-"`
	Key   string `short:"k" help:"Cipher key."`
}

type encryptCmd struct {
	Input string `arg:"" optional:"" help:"Input file, or - for stdin." default:"-"`
	Key   string `short:"k" required:"" help:"Cipher key."`
}

type decryptCmd struct {
	Input string `arg:"" optional:"" help:"Input file, or - for stdin." default:"-"`
	Key   string `short:"k" required:"" help:"Cipher key."`
}

type inspectCmd struct {
	Input string `arg:"" optional:"" help:"Input file, or - for stdin." default:"-"`
	Key   string `short:"k" help:"Cipher key."`
}

func main() {
	log.SetFlags(0)

	ctx := kong.Parse(&cli{},
		kong.Name("vex"),
		kong.Description("Self-describing binary codec with radix-85 transport."),
		kong.UsageOnError(),
	)
	if err := ctx.Run(); err != nil {
		log.Fatal(err)
	}
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func (c *encodeCmd) Run() error {
	data, err := readInput(c.Input)
	if err != nil {
		return err
	}
	v, err := vex.FromJSON(data)
	if err != nil {
		return err
	}
	opts := &vex.EncodeOptions{OmitUnsupported: c.Omit}
	if c.Key != "" {
		opts.Key = []byte(c.Key)
	}
	s, omitted, err := vex.EncodeToString(v, opts)
	if err != nil {
		return err
	}
	if omitted > 0 {
		log.Printf("vex: omitted %d entries", omitted)
	}
	fmt.Println(s)
	return nil
}

func (c *decodeCmd) Run() error {
	data, err := readInput(c.Input)
	if err != nil {
		return err
	}
	opts := &vex.DecodeOptions{}
	if c.Key != "" {
		opts.Key = []byte(c.Key)
	}
	v, err := vex.DecodeString(strings.TrimSpace(string(data)), opts)
	if err != nil {
		return err
	}
	out, err := vex.ToJSON(v)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func (c *encryptCmd) Run() error {
	data, err := readInput(c.Input)
	if err != nil {
		return err
	}
	s, err := vex.EncryptString(string(data), c.Key)
	if err != nil {
		return err
	}
	fmt.Println(s)
	return nil
}

func (c *decryptCmd) Run() error {
	data, err := readInput(c.Input)
	if err != nil {
		return err
	}
	plain, err := vex.DecryptString(strings.TrimSpace(string(data)), c.Key)
	if err != nil {
		return err
	}
	_, err = os.Stdout.WriteString(plain)
	return err
}

func (c *inspectCmd) Run() error {
	data, err := readInput(c.Input)
	if err != nil {
		return err
	}
	b, err := vex.DecodeR85(strings.TrimSpace(string(data)))
	if err != nil {
		return err
	}
	if c.Key != "" {
		b, err = vex.Decrypt(b, []byte(c.Key))
		if err != nil {
			return err
		}
	}
	fmt.Printf("binary: %d bytes\n", len(b))
	for off := 0; off < len(b); off += 16 {
		end := off + 16
		if end > len(b) {
			end = len(b)
		}
		fmt.Printf("%06x  % x\n", off, b[off:end])
	}
	v, err := vex.Unmarshal(b, nil)
	if err != nil {
		return err
	}
	out, err := vex.ToJSON(v)
	if err != nil {
		return fmt.Errorf("decoded value has no json form: %w", err)
	}
	fmt.Printf("value: %s\n", out)
	return nil
}
