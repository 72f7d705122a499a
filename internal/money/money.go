package money

import (
	"fmt"
	"strings"
)

// Amount - денежная сумма в копейках (центах). Вся арифметика целочисленная,
// чтобы переводы сохраняли суммарный баланс без потерь плавающей точки.
type Amount int64

// FactorScale - масштаб множителей начисления: 1.05 хранится как 10500.
const FactorScale = 10000

// Parse разбирает десятичную строку вида "100", "100.5", "100.50" в копейки.
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	neg := false
	if s[0] == '-' {
		neg = true
		s = s[1:]
	}
	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	if intPart == "" || len(fracPart) > 2 {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	for len(fracPart) < 2 {
		fracPart += "0"
	}
	var v int64
	for _, part := range []string{intPart, fracPart} {
		for _, c := range part {
			if c < '0' || c > '9' {
				return 0, fmt.Errorf("invalid amount %q", s)
			}
			v = v*10 + int64(c-'0')
		}
	}
	if neg {
		v = -v
	}
	return Amount(v), nil
}

// ParseFactor разбирает множитель ("1.05", "2.07") в масштаб FactorScale.
func ParseFactor(s string) (int64, error) {
	s = strings.TrimSpace(s)
	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}
	if intPart == "" || len(fracPart) > 4 {
		return 0, fmt.Errorf("invalid factor %q", s)
	}
	for len(fracPart) < 4 {
		fracPart += "0"
	}
	var v int64
	for _, part := range []string{intPart, fracPart} {
		for _, c := range part {
			if c < '0' || c > '9' {
				return 0, fmt.Errorf("invalid factor %q", s)
			}
			v = v*10 + int64(c-'0')
		}
	}
	return v, nil
}

func (a Amount) String() string {
	v := int64(a)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MulFactor умножает сумму на масштабированный множитель с округлением
// до копейки банковским правилом (half to even). Суммы неотрицательные.
func (a Amount) MulFactor(factor int64) Amount {
	p := int64(a) * factor
	q := p / FactorScale
	r := p % FactorScale
	switch {
	case 2*r > FactorScale:
		q++
	case 2*r == FactorScale && q%2 != 0:
		q++
	}
	return Amount(q)
}

// MarshalJSON выводит сумму десятичной строкой (на проводе деньги - строки).
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		*a = 0
		return nil
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
