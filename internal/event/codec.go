package event

import (
	"encoding/binary"
	"errors"
	"fmt"

	"asset-splitter-sol/internal/types"

	"google.golang.org/protobuf/encoding/protowire"
)

// 消息体字段编号
//
//	LamportsSplit:                1=source 2=destinations 3=amounts
//	TokensSplitFromSingleMint:    1=operator 2=source 3=destinations 4=amounts
//	TokensSplitFromMultipleMints: 1=operator 2=sources 3=destinations 4=amounts
const kindPrefixSize = 4

var ErrInvalidEvent = errors.New("invalid event payload")

// Encode 编码事件：前 4 字节为 Kind（小端），后续为 protobuf wire 格式消息体
func Encode(ev Event) ([]byte, error) {
	const extraBuffer = 32

	buf := make([]byte, kindPrefixSize, kindPrefixSize+extraBuffer)
	binary.LittleEndian.PutUint32(buf, uint32(ev.Kind()))

	switch e := ev.(type) {
	case *LamportsSplit:
		buf = appendKey(buf, 1, e.Source)
		buf = appendKeys(buf, 2, e.Destinations)
		buf = appendAmounts(buf, 3, e.Amounts)
	case *TokensSplitFromSingleMint:
		buf = appendKey(buf, 1, e.Operator)
		buf = appendKey(buf, 2, e.Source)
		buf = appendKeys(buf, 3, e.Destinations)
		buf = appendAmounts(buf, 4, e.Amounts)
	case *TokensSplitFromMultipleMints:
		buf = appendKey(buf, 1, e.Operator)
		buf = appendKeys(buf, 2, e.Sources)
		buf = appendKeys(buf, 3, e.Destinations)
		buf = appendAmounts(buf, 4, e.Amounts)
	default:
		return nil, fmt.Errorf("Encode: unsupported event %T", ev)
	}
	return buf, nil
}

// Decode 解析 Encode 的输出；未知字段跳过
func Decode(data []byte) (Event, error) {
	if len(data) < kindPrefixSize {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidEvent, len(data))
	}
	kind := Kind(binary.LittleEndian.Uint32(data[:kindPrefixSize]))
	body := data[kindPrefixSize:]

	var (
		ev     Event
		fields map[protowire.Number]any
	)
	switch kind {
	case KindLamportsSplit:
		e := &LamportsSplit{Destinations: []types.Pubkey{}, Amounts: []uint64{}}
		ev = e
		fields = map[protowire.Number]any{1: &e.Source, 2: &e.Destinations, 3: &e.Amounts}
	case KindTokensSplitFromSingleMint:
		e := &TokensSplitFromSingleMint{Destinations: []types.Pubkey{}, Amounts: []uint64{}}
		ev = e
		fields = map[protowire.Number]any{1: &e.Operator, 2: &e.Source, 3: &e.Destinations, 4: &e.Amounts}
	case KindTokensSplitFromMultipleMints:
		e := &TokensSplitFromMultipleMints{Sources: []types.Pubkey{}, Destinations: []types.Pubkey{}, Amounts: []uint64{}}
		ev = e
		fields = map[protowire.Number]any{1: &e.Operator, 2: &e.Sources, 3: &e.Destinations, 4: &e.Amounts}
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrInvalidEvent, uint32(kind))
	}

	if err := decodeFields(body, fields); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return ev, nil
}

func decodeFields(b []byte, fields map[protowire.Number]any) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrInvalidEvent, protowire.ParseError(n))
		}
		b = b[n:]

		target, known := fields[num]
		if !known || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("%w: %v", ErrInvalidEvent, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrInvalidEvent, protowire.ParseError(n))
		}
		b = b[n:]

		switch t := target.(type) {
		case *types.Pubkey:
			if len(v) != len(t) {
				return fmt.Errorf("%w: pubkey field %d has %d bytes", ErrInvalidEvent, num, len(v))
			}
			copy(t[:], v)
		case *[]types.Pubkey:
			if len(v) != len(types.Pubkey{}) {
				return fmt.Errorf("%w: pubkey field %d has %d bytes", ErrInvalidEvent, num, len(v))
			}
			*t = append(*t, types.Pubkey(v))
		case *[]uint64:
			for len(v) > 0 {
				x, m := protowire.ConsumeVarint(v)
				if m < 0 {
					return fmt.Errorf("%w: %v", ErrInvalidEvent, protowire.ParseError(m))
				}
				*t = append(*t, x)
				v = v[m:]
			}
		}
	}
	return nil
}

func appendKey(b []byte, num protowire.Number, key types.Pubkey) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, key[:])
}

func appendKeys(b []byte, num protowire.Number, keys []types.Pubkey) []byte {
	for _, k := range keys {
		b = appendKey(b, num, k)
	}
	return b
}

// appendAmounts 使用 packed 编码；空列表不写字段
func appendAmounts(b []byte, num protowire.Number, amounts []uint64) []byte {
	if len(amounts) == 0 {
		return b
	}
	size := 0
	for _, a := range amounts {
		size += protowire.SizeVarint(a)
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(size))
	for _, a := range amounts {
		b = protowire.AppendVarint(b, a)
	}
	return b
}
