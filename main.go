package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/av1dec/go-av1/av1"
	"github.com/av1dec/go-av1/av1/bitio"
)

const (
	obuSequenceHeader = 1
	obuTemporalDelim  = 2
	obuFrameHeader    = 3
	obuTileGroup      = 4
	obuMetadata       = 5
	obuFrame          = 6
)

// this is a crappy IVF reader
func readIVFHeader(f *os.File) error {
	var hdr [32]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return err
	}
	if string(hdr[0:4]) != "DKIF" {
		return fmt.Errorf("not an IVF file")
	}
	if string(hdr[8:12]) != "AV01" {
		return fmt.Errorf("not an AV1 stream: fourcc %q", hdr[8:12])
	}
	return nil
}

func readIVFFrame(f *os.File) ([]byte, error) {
	var hdr [12]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(hdr[0:4])
	buf := make([]byte, size)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// splitOBU peels one OBU off the temporal unit: type, payload, rest.
func splitOBU(data []byte) (int, []byte, []byte, error) {
	if len(data) == 0 {
		return 0, nil, nil, io.EOF
	}
	header := data[0]
	obuType := int(header >> 3 & 0xf)
	hasExtension := header&4 != 0
	hasSize := header&2 != 0
	pos := 1
	if hasExtension {
		pos++
	}
	if !hasSize {
		return obuType, data[pos:], nil, nil
	}
	r := bitio.NewReader(data[pos:])
	size := int(r.ReadLeb128())
	if err := r.Err(); err != nil {
		return 0, nil, nil, err
	}
	pos += r.BytesRead()
	if pos+size > len(data) {
		return 0, nil, nil, fmt.Errorf("OBU size %d exceeds remaining %d bytes", size, len(data)-pos)
	}
	return obuType, data[pos : pos+size], data[pos+size:], nil
}

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		log.Fatalln("usage: go-av1 input.ivf")
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		log.Fatalln(err)
	}
	defer f.Close()

	if err := readIVFHeader(f); err != nil {
		log.Fatalln(err)
	}

	var dec *av1.Decoder
	frames := 0
	for {
		tu, err := readIVFFrame(f)
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalln(err)
		}

		for len(tu) > 0 {
			obuType, payload, rest, err := splitOBU(tu)
			if err != nil {
				log.Fatalln(err)
			}
			tu = rest

			switch obuType {
			case obuSequenceHeader:
				dec, err = av1.NewDecoder(payload)
				if err != nil {
					log.Fatalln(err)
				}
			case obuFrame:
				if dec == nil {
					log.Fatalln("frame before sequence header")
				}
				frame, err := dec.DecodeFrame(payload)
				if err != nil {
					log.Fatalln(err)
				}
				if frame != nil {
					frames++
					fmt.Printf("frame %d: %dx%d (%d bit)\n",
						frames, frame.Width, frame.Height, frame.Picture.BitDepth)
				}
			}
		}
	}

	fmt.Printf("decoded %d shown frames\n", frames)
}
