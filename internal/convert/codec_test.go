package convert

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/chriscow/voicebridge-go/pkg/audio/wav"
	"github.com/chriscow/voicebridge-go/pkg/rtc"
)

// fakeCodecEnv makes the test binary behave like ffmpeg when set. Values:
// ok, fail, hang, truncate.
const fakeCodecEnv = "VOICEBRIDGE_FAKE_CODEC"

// runFakeCodec understands the argument shapes the converter produces:
// optional "-f s16le -ar N -ac N" before "-i pipe:0", then an output
// "-f {wav|s16le} -ar N" and "pipe:1".
func runFakeCodec(mode string, args []string) int {
	switch mode {
	case "fail":
		fmt.Fprintln(os.Stderr, "pipe:0: Invalid data found when processing input")
		return 1
	case "hang":
		time.Sleep(time.Hour)
		return 0
	}

	input, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	inputIdx := indexOf(args, "-i")
	rawIn := flagValue(args[:inputIdx], "-f") == "s16le"
	outFormat := flagValue(args[inputIdx:], "-f")
	outRate, _ := strconv.Atoi(flagValue(args[inputIdx:], "-ar"))

	var pcm []byte
	var inRate int
	if rawIn {
		pcm = input
		inRate, _ = strconv.Atoi(flagValue(args[:inputIdx], "-ar"))
	} else {
		header, data, err := wav.Decode(input)
		if err != nil {
			fmt.Fprintln(os.Stderr, "pipe:0: Invalid data found when processing input")
			return 1
		}
		pcm, inRate = data, int(header.SampleRate)
	}

	out := resample(pcm, inRate, outRate)
	if mode == "truncate" {
		out = out[:len(out)/4*2]
	}

	if outFormat == "wav" {
		// A pipe cannot be seeked, so the sizes are placeholders.
		encoded, _ := wav.Encode(out, rtc.Format{SampleRate: outRate, Channels: 1})
		if mode != "truncate" {
			binary.LittleEndian.PutUint32(encoded[4:8], 0xFFFFFFFF)
			binary.LittleEndian.PutUint32(encoded[40:44], 0xFFFFFFFF)
		} else {
			binary.LittleEndian.PutUint32(encoded[40:44], uint32(len(out)*2))
		}
		out = encoded
	}

	_, _ = io.Copy(os.Stdout, bytes.NewReader(out))
	return 0
}

// resample picks the nearest input sample for every output sample.
func resample(pcm []byte, inRate, outRate int) []byte {
	n := len(pcm) / 2
	m := n * outRate / inRate
	out := make([]byte, 0, m*2)
	for i := 0; i < m; i++ {
		j := i * inRate / outRate
		out = append(out, pcm[2*j], pcm[2*j+1])
	}
	return out
}

func indexOf(args []string, s string) int {
	for i, a := range args {
		if a == s {
			return i
		}
	}
	return len(args)
}

func flagValue(args []string, name string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == name {
			return args[i+1]
		}
	}
	return ""
}
