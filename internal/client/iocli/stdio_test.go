package iocli

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Проверяем что NewStdio возвращает валидный объект
func TestNewStdio(t *testing.T) {
	stdio := NewStdio()
	assert.NotNil(t, stdio)
}

func TestStream_Output(t *testing.T) {
	var out bytes.Buffer
	s := NewStream(strings.NewReader(""), &out)

	s.Println("hello", "world")
	s.Printf("test %d %s\n", 1, "abc")
	n, err := s.Write([]byte("raw"))

	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "hello world\ntest 1 abc\nraw", out.String())
}

// Несколько ReadInput подряд не теряют буферизованный ввод
func TestStream_ReadInput(t *testing.T) {
	var out bytes.Buffer
	s := NewStream(strings.NewReader("  first \nsecond\nlast"), &out)

	first, err := s.ReadInput("A: ")
	require.NoError(t, err)
	assert.Equal(t, "first", first)

	second, err := s.ReadInput("B: ")
	require.NoError(t, err)
	assert.Equal(t, "second", second)

	last, err := s.ReadInput("C: ")
	require.NoError(t, err)
	assert.Equal(t, "last", last, "последняя строка без перевода строки")

	_, err = s.ReadInput("D: ")
	assert.ErrorIs(t, err, io.EOF)

	assert.Equal(t, "A: B: C: D: ", out.String())
}

// Не терминал: пароль читается как обычная строка
func TestStream_ReadPasswordFromPipe(t *testing.T) {
	var out bytes.Buffer
	s := NewStream(strings.NewReader("s3cret\n"), &out)

	pw, err := s.ReadPassword("Passphrase: ")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", pw)
	assert.Equal(t, "Passphrase: ", out.String())
}
