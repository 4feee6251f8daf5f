package engine

import (
	"strconv"
	"strings"
)

// Score is an engine evaluation from the side to move's point of view.
// Mate is non-zero for forced mates (negative when being mated).
type Score struct {
	CP   int
	Mate int
}

// Info is one parsed "info" line.
type Info struct {
	Depth   int
	MultiPV int // 1-based rank, 1 when the engine does not report it
	Score   Score
	Nodes   uint64
	PV      []string
}

// ParseInfo parses a UCI "info" line. It reports false for anything else,
// including "info string" chatter.
func ParseInfo(line string) (Info, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != "info" || fields[1] == "string" {
		return Info{}, false
	}

	info := Info{MultiPV: 1}
	for i := 1; i < len(fields); i++ {
		switch fields[i] {
		case "depth":
			if i+1 < len(fields) {
				info.Depth, _ = strconv.Atoi(fields[i+1])
				i++
			}
		case "multipv":
			if i+1 < len(fields) {
				if k, err := strconv.Atoi(fields[i+1]); err == nil && k > 0 {
					info.MultiPV = k
				}
				i++
			}
		case "nodes":
			if i+1 < len(fields) {
				info.Nodes, _ = strconv.ParseUint(fields[i+1], 10, 64)
				i++
			}
		case "score":
			if i+2 < len(fields) {
				v, _ := strconv.Atoi(fields[i+2])
				switch fields[i+1] {
				case "cp":
					info.Score.CP = v
				case "mate":
					info.Score.Mate = v
				}
				i += 2
			}
		case "pv":
			info.PV = append([]string(nil), fields[i+1:]...)
			return info, true
		case "string":
			return info, true
		}
	}
	return info, true
}

// rankedLines keeps the latest line reported for each multipv rank.
type rankedLines map[int]Info

func (r rankedLines) add(info Info) {
	if len(info.PV) == 0 {
		return
	}
	r[info.MultiPV] = info
}

// firstMoves returns the first PV move of ranks 1..n, skipping missing ranks.
func (r rankedLines) firstMoves(n int) []string {
	moves := make([]string, 0, n)
	for k := 1; k <= n; k++ {
		if info, ok := r[k]; ok {
			moves = append(moves, info.PV[0])
		}
	}
	return moves
}
