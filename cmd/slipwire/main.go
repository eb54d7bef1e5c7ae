package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/bigbag/slipwire/internal/link"
	"github.com/bigbag/slipwire/internal/serial"
	"github.com/bigbag/slipwire/internal/slip"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	portFlag     string
	baudFlag     int
	outFlag      string
	hexFlag      bool
	rawFlag      bool
	strictFlag   bool
	mtuFlag      int
	maxFrameFlag int
	countFlag    int
	timeoutFlag  time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "slipwire",
		Short: "Frame and unframe byte streams with SLIP (RFC 1055)",
		Long: `Slipwire is a tool for SLIP framing: it wraps payloads in
END-delimited, escaped frames and recovers payloads from raw byte
streams, either on files/pipes or directly over a serial port.`,
	}

	encodeCmd := &cobra.Command{
		Use:   "encode [file]",
		Short: "Encode a payload into one SLIP frame",
		Long: `Read a payload from a file (or stdin) and write the SLIP frame
to stdout or --out.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runEncode,
	}
	encodeCmd.Flags().StringVarP(&outFlag, "out", "o", "", "Output file (stdout if not specified)")
	encodeCmd.Flags().BoolVar(&hexFlag, "hex", false, "Print the frame as hex instead of raw bytes")

	decodeCmd := &cobra.Command{
		Use:   "decode [file]",
		Short: "Decode SLIP frames from a byte stream",
		Long: `Read a raw byte stream from a file (or stdin), decode every SLIP
frame in it, and print one payload per line as hex (or raw bytes
with --raw).`,
		Args: cobra.MaximumNArgs(1),
		RunE: runDecode,
	}
	decodeCmd.Flags().BoolVar(&rawFlag, "raw", false, "Write payload bytes instead of hex lines")
	decodeCmd.Flags().BoolVar(&strictFlag, "strict", false, "Stop at the first decode error instead of resyncing")
	decodeCmd.Flags().IntVar(&maxFrameFlag, "max-frame", link.DefaultMaxPayload, "Maximum payload size in bytes")

	sendCmd := &cobra.Command{
		Use:   "send <file>",
		Short: "Send a file over a serial port as SLIP frames",
		Long: `Split a file into MTU-sized payloads and send each one as a SLIP
frame over the serial port.`,
		Args: cobra.ExactArgs(1),
		RunE: runSend,
	}
	sendCmd.Flags().StringVarP(&portFlag, "port", "p", "", "Serial port")
	sendCmd.Flags().IntVarP(&baudFlag, "baud", "b", serial.DefaultBaudRate, "Baud rate")
	sendCmd.Flags().IntVar(&mtuFlag, "mtu", 256, "Payload bytes per frame")
	sendCmd.MarkFlagRequired("port")

	recvCmd := &cobra.Command{
		Use:   "recv",
		Short: "Receive SLIP frames from a serial port",
		Long:  `Open the serial port and print each received payload as a hex line.`,
		RunE:  runRecv,
	}
	recvCmd.Flags().StringVarP(&portFlag, "port", "p", "", "Serial port")
	recvCmd.Flags().IntVarP(&baudFlag, "baud", "b", serial.DefaultBaudRate, "Baud rate")
	recvCmd.Flags().IntVar(&maxFrameFlag, "max-frame", link.DefaultMaxPayload, "Maximum payload size in bytes")
	recvCmd.Flags().IntVarP(&countFlag, "count", "c", 0, "Stop after this many frames (0 = forever)")
	recvCmd.Flags().DurationVar(&timeoutFlag, "timeout", 10*time.Second, "Per-frame receive timeout")
	recvCmd.MarkFlagRequired("port")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("slipwire %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available serial ports",
		RunE:  runList,
	}

	rootCmd.AddCommand(encodeCmd, decodeCmd, sendCmd, recvCmd, versionCmd, listCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func readInput(args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(args[0])
}

func runEncode(cmd *cobra.Command, args []string) error {
	payload, err := readInput(args)
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}

	frame := slip.EncodeBytes(payload)

	out := os.Stdout
	if outFlag != "" {
		f, err := os.Create(outFlag)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if hexFlag {
		_, err = fmt.Fprintln(out, hex.EncodeToString(frame))
	} else {
		_, err = out.Write(frame)
	}
	return err
}

func runDecode(cmd *cobra.Command, args []string) error {
	stream, err := readInput(args)
	if err != nil {
		return fmt.Errorf("failed to read stream: %w", err)
	}

	dec := slip.NewDecoder(maxFrameFlag)
	frames := 0
	dropped := 0

	for i, b := range stream {
		if err := dec.Insert(b); err != nil {
			if strictFlag {
				return fmt.Errorf("decode error at byte %d: %w", i, err)
			}
			dropped++
			dec.Reset()
			continue
		}
		if !dec.Completed() {
			continue
		}
		if dec.Len() == 0 {
			// Idle delimiter, not a payload. The END re-opens the
			// next frame.
			dec.Reset()
			dec.Insert(slip.End)
			continue
		}

		if rawFlag {
			if _, err := os.Stdout.Write(dec.Bytes()); err != nil {
				return err
			}
		} else {
			fmt.Println(hex.EncodeToString(dec.Bytes()))
		}
		frames++
		dec.Reset()
	}

	if !rawFlag {
		fmt.Fprintf(os.Stderr, "%d frame(s) decoded", frames)
		if dropped > 0 {
			fmt.Fprintf(os.Stderr, ", %d dropped", dropped)
		}
		fmt.Fprintln(os.Stderr)
	}
	return nil
}

func runSend(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	port, err := serial.Open(portFlag, baudFlag)
	if err != nil {
		return fmt.Errorf("failed to open port: %w", err)
	}
	defer port.Close()

	fmt.Printf("Port: %s @ %d baud\n", portFlag, baudFlag)
	fmt.Printf("Sending %s (%d bytes, %d bytes per frame)\n", args[0], len(data), mtuFlag)

	l := link.New(port, link.WithMaxPayload(mtuFlag))

	totalFrames := (len(data) + mtuFlag - 1) / mtuFlag
	bar := progressbar.NewOptions(totalFrames,
		progressbar.OptionSetDescription("Sending"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	for seq := 0; seq < totalFrames; seq++ {
		start := seq * mtuFlag
		end := start + mtuFlag
		if end > len(data) {
			end = len(data)
		}

		if err := l.Send(data[start:end]); err != nil {
			return fmt.Errorf("failed to send frame %d: %w", seq, err)
		}
		bar.Set(seq + 1)
	}

	bar.Finish()
	fmt.Printf("\nSent %d frame(s)\n", totalFrames)
	return nil
}

func runRecv(cmd *cobra.Command, args []string) error {
	port, err := serial.Open(portFlag, baudFlag)
	if err != nil {
		return fmt.Errorf("failed to open port: %w", err)
	}
	defer port.Close()

	fmt.Fprintf(os.Stderr, "Listening on %s @ %d baud\n", portFlag, baudFlag)

	l := link.New(port, link.WithMaxPayload(maxFrameFlag))

	received := 0
	for countFlag == 0 || received < countFlag {
		payload, err := l.Receive(timeoutFlag)
		if err == link.ErrTimeout {
			continue
		}
		if err != nil {
			return err
		}

		fmt.Println(hex.EncodeToString(payload))
		received++
	}

	if dropped := l.Dropped(); dropped > 0 {
		fmt.Fprintf(os.Stderr, "%d frame(s) dropped\n", dropped)
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	ports, err := serial.ListPorts()
	if err != nil {
		return err
	}

	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}

	fmt.Println("Available serial ports:")
	for _, p := range ports {
		fmt.Printf("  %s\n", p)
	}

	return nil
}
