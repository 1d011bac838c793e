package common

import (
	"bytes"
	"errors"
	"io"
)

// AppendSentence encodes words followed by the zero-length terminator.
func AppendSentence(buf []byte, words ...[]byte) ([]byte, error) {
	var err error
	for _, word := range words {
		if buf, err = AppendWord(buf, word); err != nil {
			return nil, err
		}
	}
	return append(buf, 0x00), nil
}

// EncodeSentence encodes a sentence of string words.
func EncodeSentence(words ...string) ([]byte, error) {
	raw := make([][]byte, len(words))
	size := 1
	for i, w := range words {
		raw[i] = []byte(w)
		size += len(w) + 5
	}
	return AppendSentence(make([]byte, 0, size), raw...)
}

// WriteSentence writes the whole sentence with a single Write call.
func WriteSentence(w io.Writer, words ...[]byte) error {
	buf, err := AppendSentence(nil, words...)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// ReadSentence reads words until the terminator. An empty result is a valid
// empty sentence. EOF before the terminator is io.ErrUnexpectedEOF.
func ReadSentence(r io.Reader) ([][]byte, error) {
	words := [][]byte{}
	for {
		word, err := ReadWord(r)
		if err != nil {
			if len(words) > 0 && errors.Is(err, io.EOF) {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		if len(word) == 0 {
			return words, nil
		}
		words = append(words, word)
	}
}

// DecodeSentences splits a raw buffer into sentences. Trailing bytes that do
// not form a complete sentence are an error.
func DecodeSentences(data []byte) ([][]string, error) {
	r := bytes.NewReader(data)
	var sentences [][]string
	for r.Len() > 0 {
		words, err := ReadSentence(r)
		if err != nil {
			return nil, unexpected(err)
		}
		sentence := make([]string, len(words))
		for i, w := range words {
			sentence[i] = string(w)
		}
		sentences = append(sentences, sentence)
	}
	return sentences, nil
}
