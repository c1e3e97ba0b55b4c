package link

import "io"

// TxBufSize — размер буфера передачи.
const TxBufSize = 256

// TxBuffer — единственный буфер передачи канала. Запись сверх ёмкости обрезается.
type TxBuffer struct {
	buf [TxBufSize]byte
	n   int
}

// Len — число записанных байтов.
func (b *TxBuffer) Len() int { return b.n }

// Bytes — записанные байты; действительны до Clear.
func (b *TxBuffer) Bytes() []byte { return b.buf[:b.n] }

// Clear очищает буфер.
func (b *TxBuffer) Clear() { b.n = 0 }

// Write копирует сколько помещается; при обрезке возвращает io.ErrShortWrite.
func (b *TxBuffer) Write(p []byte) (int, error) {
	n := copy(b.buf[b.n:], p)
	b.n += n
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// WriteString — Write для строки.
func (b *TxBuffer) WriteString(s string) (int, error) {
	n := copy(b.buf[b.n:], s)
	b.n += n
	if n < len(s) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// WriteByte добавляет байт.
func (b *TxBuffer) WriteByte(c byte) error {
	if b.n >= TxBufSize {
		return io.ErrShortWrite
	}
	b.buf[b.n] = c
	b.n++
	return nil
}

// Append даёт fn дописать в буфер через append (strconv.Append*). Возвращает false,
// если результат не поместился; тогда записана только часть, что влезла.
func (b *TxBuffer) Append(fn func([]byte) []byte) bool {
	out := fn(b.buf[:b.n:TxBufSize])
	if len(out) <= TxBufSize && (len(out) == 0 || &out[0] == &b.buf[0]) {
		b.n = len(out)
		return true
	}
	// append перевыделил память: копируем влезающий хвост
	b.n += copy(b.buf[b.n:], out[b.n:])
	return false
}
