package playback

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidRange  = errors.New("invalid range format")
	ErrUnsatisfiable = errors.New("range not satisfiable")
)

// DefaultChunkSize caps the answer to an open-ended range. Video elements
// send "bytes=N-" on every seek and drop the connection after a few frames.
const DefaultChunkSize int64 = 4 << 20

// ByteRange is an inclusive span of a media file.
type ByteRange struct {
	First int64
	Last  int64
}

func (r ByteRange) Len() int64 {
	return r.Last - r.First + 1
}

// ContentRange is the Content-Range value for a file of size bytes.
func (r ByteRange) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.First, r.Last, size)
}

// ParseRange reads the first span of a Range header against a file of size
// bytes. ok is false when there is no header and the whole file is served.
// An open-ended span ends at most chunk bytes after its start when chunk > 0;
// suffix and explicit spans are never capped.
func ParseRange(header string, size, chunk int64) (r ByteRange, ok bool, err error) {
	if header == "" {
		return ByteRange{}, false, nil
	}

	spec, found := strings.CutPrefix(header, "bytes=")
	if !found {
		return ByteRange{}, false, ErrInvalidRange
	}
	spec, _, _ = strings.Cut(spec, ",")
	first, last, found := strings.Cut(strings.TrimSpace(spec), "-")
	if !found {
		return ByteRange{}, false, ErrInvalidRange
	}

	if first == "" {
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n <= 0 {
			return ByteRange{}, false, ErrInvalidRange
		}
		r = ByteRange{First: max(size-n, 0), Last: size - 1}
	} else {
		start, err := strconv.ParseInt(first, 10, 64)
		if err != nil || start < 0 {
			return ByteRange{}, false, ErrInvalidRange
		}
		r = ByteRange{First: start, Last: size - 1}

		switch {
		case last != "":
			end, err := strconv.ParseInt(last, 10, 64)
			if err != nil {
				return ByteRange{}, false, ErrInvalidRange
			}
			if end < start {
				return ByteRange{}, false, ErrUnsatisfiable
			}
			r.Last = min(end, size-1)
		case chunk > 0:
			r.Last = min(start+chunk-1, size-1)
		}
	}

	if r.First >= size || r.First > r.Last {
		return ByteRange{}, false, ErrUnsatisfiable
	}
	return r, true, nil
}
