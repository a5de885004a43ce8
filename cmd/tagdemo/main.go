// Command tagdemo prints sample serial/tag conversions.
//
// With no flags it prints the first --count serials next to their tags
// and the decoded value (stopping at the first mismatch), then the ten
// serials below the largest int64, then how mistyped 0 and 1 decode.
// --encode and --decode convert single values instead.
package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/Siddarth2230/serial-tags/pkg/tagcode"
)

var errMismatch = errors.New("round trip mismatch")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "tagdemo:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("tagdemo", flag.ContinueOnError)
	fs.SetOutput(out)
	count := fs.Int64("count", 200, "number of serials to print from 0")
	verify := fs.Int64("verify", 1_000_000, "number of serials to round-trip silently after the printed ones")
	encode := fs.Int64Slice("encode", nil, "encode these serials and exit")
	decode := fs.StringSlice("decode", nil, "decode these tags and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if len(*encode) > 0 || len(*decode) > 0 {
		return convert(out, *encode, *decode)
	}

	fmt.Fprintf(out, "First %d values, or until first mismatch:\n", *count)
	if err := sweep(out, *count, *verify); err != nil {
		return err
	}
	fmt.Fprintln(out, "Encode/decode round trip OK")

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Last ten int64 values:")
	for s := int64(math.MaxInt64 - 9); ; s++ {
		if err := row(out, s); err != nil {
			return err
		}
		if s == math.MaxInt64 {
			break
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Mistyped 0 and 1:")
	for _, pair := range [][2]string{{"30a", "3oa"}, {"31a", "3la"}, {"20a", "2oa"}, {"21a", "2la"}} {
		fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", pair[0], describe(pair[0]), pair[1], describe(pair[1]))
	}
	return nil
}

// sweep prints the first count rows and round-trips the next verify
// serials without printing. On a mismatch it prints the five rows
// leading up to it.
func sweep(out io.Writer, count, verify int64) error {
	for s := int64(0); s < count+verify; s++ {
		tag, err := tagcode.Encode(s)
		if err != nil {
			return err
		}
		got, err := tagcode.Decode(tag)
		if err != nil || got != s {
			for j := max(0, s-5); j <= s; j++ {
				_ = row(out, j)
			}
			return fmt.Errorf("%w at %d", errMismatch, s)
		}
		if s < count {
			fmt.Fprintf(out, "%d\t%s\t%d\n", s, tag, got)
		}
	}
	return nil
}

func row(out io.Writer, s int64) error {
	tag, err := tagcode.Encode(s)
	if err != nil {
		return err
	}
	got, err := tagcode.Decode(tag)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d\t%s\t%d\n", s, tag, got)
	return nil
}

func describe(tag string) string {
	s, err := tagcode.Decode(tag)
	if err != nil {
		return "invalid"
	}
	return fmt.Sprint(s)
}

func convert(out io.Writer, serials []int64, tags []string) error {
	var failed error
	for _, s := range serials {
		tag, err := tagcode.Encode(s)
		if err != nil {
			fmt.Fprintf(out, "%d\terror: %v\n", s, err)
			failed = err
			continue
		}
		fmt.Fprintf(out, "%d\t%s\n", s, tag)
	}
	for _, tag := range tags {
		s, err := tagcode.Decode(tag)
		if err != nil {
			fmt.Fprintf(out, "%s\terror: %v\n", tag, err)
			failed = err
			continue
		}
		fmt.Fprintf(out, "%s\t%d\n", tag, s)
	}
	return failed
}
