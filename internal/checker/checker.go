// Package checker implements the built-in output comparators available to
// the judge pipeline without compiling a checker binary, grounded on
// testlib's well-known comparator semantics (wcmp, ncmp, rcmp*, etc.).
package checker

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"evaljudge/internal/apperr"
)

// Outcome is the result of comparing an output against an answer.
type Outcome struct {
	NormalizedScore float64 // 1.0 = fully correct, 0.0 = fully wrong
	Message         string
}

// CompareFunc compares the contestant's output against the reference
// answer, given the original input for context (unused by most builtins).
type CompareFunc func(input, output, answer io.Reader) (Outcome, error)

var registry = map[string]CompareFunc{
	"lcmp":     lineCompare,
	"fcmp":     exactCompare,
	"wcmp":     tokenCompare(compareTokenExact, false),
	"casewcmp": tokenCompare(compareTokenExact, false),
	"ncmp":     tokenCompare(compareTokenInt, false),
	"icmp":     tokenCompare(compareTokenInt, false),
	"hcmp":     tokenCompare(compareTokenBigInt, false),
	"rcmp":     tokenCompare(compareTokenReal(1e-6), false),
	"rcmp4":    tokenCompare(compareTokenReal(1e-4), false),
	"rcmp6":    tokenCompare(compareTokenReal(1e-6), false),
	"rcmp9":    tokenCompare(compareTokenReal(1e-9), false),
	"dcmp":     tokenCompare(compareTokenReal(1e-9), false),
	"yesno":    tokenCompare(compareTokenYesNo, true),
	"nyesno":   tokenCompare(compareTokenYesNo, false),
	"caseicmp": tokenCompare(compareTokenCaseInsensitive, false),
	"casencmp": tokenCompare(compareTokenExact, false),
	"uncmp":    unorderedIntCompare,
	"rncmp":    unorderedRealCompare(1e-6),
	"acmp":     tokenCompare(compareTokenInt, false),
}

// Lookup returns the comparator for a built-in name, or an error if the
// name isn't one of the known built-ins.
func Lookup(name string) (CompareFunc, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, apperr.Newf(apperr.CheckerNotFound, "unknown built-in checker %q", name)
	}
	return fn, nil
}

// Names lists every registered built-in checker name.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	return names
}

func exactCompare(_ io.Reader, output, answer io.Reader) (Outcome, error) {
	out, err := io.ReadAll(output)
	if err != nil {
		return Outcome{}, err
	}
	ans, err := io.ReadAll(answer)
	if err != nil {
		return Outcome{}, err
	}
	if bytes.Equal(out, ans) {
		return Outcome{NormalizedScore: 1, Message: "ok"}, nil
	}
	return Outcome{Message: "output does not byte-match the answer file"}, nil
}

func lineCompare(_ io.Reader, output, answer io.Reader) (Outcome, error) {
	outLines, err := readLines(output)
	if err != nil {
		return Outcome{}, err
	}
	ansLines, err := readLines(answer)
	if err != nil {
		return Outcome{}, err
	}
	if len(outLines) != len(ansLines) {
		return Outcome{Message: fmt.Sprintf("line count mismatch: %d vs %d", len(outLines), len(ansLines))}, nil
	}
	for i := range outLines {
		if strings.TrimRight(outLines[i], " \t\r") != strings.TrimRight(ansLines[i], " \t\r") {
			return Outcome{Message: fmt.Sprintf("line %d differs", i+1)}, nil
		}
	}
	return Outcome{NormalizedScore: 1, Message: "ok"}, nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

type tokenComparer func(out, ans string) (bool, string)

func tokenCompare(cmp tokenComparer, allowExtraOutputTokens bool) CompareFunc {
	return func(_ io.Reader, output, answer io.Reader) (Outcome, error) {
		outTokens, err := tokens(output)
		if err != nil {
			return Outcome{}, err
		}
		ansTokens, err := tokens(answer)
		if err != nil {
			return Outcome{}, err
		}
		n := len(ansTokens)
		if !allowExtraOutputTokens && len(outTokens) != len(ansTokens) {
			return Outcome{Message: fmt.Sprintf("token count mismatch: %d vs %d", len(outTokens), len(ansTokens))}, nil
		}
		if len(outTokens) < n {
			return Outcome{Message: "not enough tokens in output"}, nil
		}
		for i := 0; i < n; i++ {
			ok, reason := cmp(outTokens[i], ansTokens[i])
			if !ok {
				return Outcome{Message: fmt.Sprintf("token %d: %s", i+1, reason)}, nil
			}
		}
		return Outcome{NormalizedScore: 1, Message: "ok"}, nil
	}
}

func tokens(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return strings.Fields(string(data)), nil
}

func compareTokenExact(out, ans string) (bool, string) {
	if out == ans {
		return true, ""
	}
	return false, fmt.Sprintf("expected %q, found %q", ans, out)
}

func compareTokenInt(out, ans string) (bool, string) {
	outN, err1 := strconv.ParseInt(out, 10, 64)
	ansN, err2 := strconv.ParseInt(ans, 10, 64)
	if err1 != nil || err2 != nil {
		return false, fmt.Sprintf("expected integer %q, found %q", ans, out)
	}
	if outN != ansN {
		return false, fmt.Sprintf("expected %d, found %d", ansN, outN)
	}
	return true, ""
}

func compareTokenBigInt(out, ans string) (bool, string) {
	outN, ok1 := new(big.Int).SetString(out, 10)
	ansN, ok2 := new(big.Int).SetString(ans, 10)
	if !ok1 || !ok2 {
		return false, fmt.Sprintf("expected big integer %q, found %q", ans, out)
	}
	if outN.Cmp(ansN) != 0 {
		return false, fmt.Sprintf("expected %s, found %s", ansN.String(), outN.String())
	}
	return true, ""
}

func compareTokenReal(eps float64) tokenComparer {
	return func(out, ans string) (bool, string) {
		outF, err1 := strconv.ParseFloat(out, 64)
		ansF, err2 := strconv.ParseFloat(ans, 64)
		if err1 != nil || err2 != nil {
			return false, fmt.Sprintf("expected real number %q, found %q", ans, out)
		}
		diff := math.Abs(outF - ansF)
		tolerance := eps * math.Max(1.0, math.Abs(ansF))
		if diff > tolerance {
			return false, fmt.Sprintf("expected %v, found %v (diff %v > eps %v)", ansF, outF, diff, tolerance)
		}
		return true, ""
	}
}

func compareTokenYesNo(out, ans string) (bool, string) {
	o := strings.ToLower(out)
	a := strings.ToLower(ans)
	if o != "yes" && o != "no" {
		return false, fmt.Sprintf("expected yes/no, found %q", out)
	}
	if o != a {
		return false, fmt.Sprintf("expected %q, found %q", ans, out)
	}
	return true, ""
}

func compareTokenCaseInsensitive(out, ans string) (bool, string) {
	if strings.EqualFold(out, ans) {
		return true, ""
	}
	return false, fmt.Sprintf("expected %q, found %q (case-insensitive)", ans, out)
}

// unorderedIntCompare treats the output and answer as multisets of integers:
// order doesn't matter, only that the sorted sequences match.
func unorderedIntCompare(_ io.Reader, output, answer io.Reader) (Outcome, error) {
	outTokens, err := tokens(output)
	if err != nil {
		return Outcome{}, err
	}
	ansTokens, err := tokens(answer)
	if err != nil {
		return Outcome{}, err
	}
	if len(outTokens) != len(ansTokens) {
		return Outcome{Message: fmt.Sprintf("token count mismatch: %d vs %d", len(outTokens), len(ansTokens))}, nil
	}
	outSorted, err := parseSortedInts(outTokens)
	if err != nil {
		return Outcome{Message: err.Error()}, nil
	}
	ansSorted, err := parseSortedInts(ansTokens)
	if err != nil {
		return Outcome{Message: err.Error()}, nil
	}
	for i := range outSorted {
		if outSorted[i] != ansSorted[i] {
			return Outcome{Message: "multisets of integers differ"}, nil
		}
	}
	return Outcome{NormalizedScore: 1, Message: "ok"}, nil
}

func parseSortedInts(toks []string) ([]int64, error) {
	nums := make([]int64, len(toks))
	for i, t := range toks {
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("expected integer, found %q", t)
		}
		nums[i] = n
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	return nums, nil
}

// unorderedRealCompare treats the output and answer as multisets of real
// numbers compared within eps after sorting each side.
func unorderedRealCompare(eps float64) CompareFunc {
	return func(_ io.Reader, output, answer io.Reader) (Outcome, error) {
		outTokens, err := tokens(output)
		if err != nil {
			return Outcome{}, err
		}
		ansTokens, err := tokens(answer)
		if err != nil {
			return Outcome{}, err
		}
		if len(outTokens) != len(ansTokens) {
			return Outcome{Message: fmt.Sprintf("token count mismatch: %d vs %d", len(outTokens), len(ansTokens))}, nil
		}
		outSorted, err := parseSortedFloats(outTokens)
		if err != nil {
			return Outcome{Message: err.Error()}, nil
		}
		ansSorted, err := parseSortedFloats(ansTokens)
		if err != nil {
			return Outcome{Message: err.Error()}, nil
		}
		for i := range outSorted {
			diff := math.Abs(outSorted[i] - ansSorted[i])
			tolerance := eps * math.Max(1.0, math.Abs(ansSorted[i]))
			if diff > tolerance {
				return Outcome{Message: "multisets of reals differ"}, nil
			}
		}
		return Outcome{NormalizedScore: 1, Message: "ok"}, nil
	}
}

func parseSortedFloats(toks []string) ([]float64, error) {
	nums := make([]float64, len(toks))
	for i, t := range toks {
		n, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return nil, fmt.Errorf("expected real number, found %q", t)
		}
		nums[i] = n
	}
	sort.Float64s(nums)
	return nums, nil
}
