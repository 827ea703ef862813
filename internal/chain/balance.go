package chain

import (
	"fmt"
	"math/big"
)

var weiPerEther = new(big.Float).SetInt(big.NewInt(1e18))

// FormatETH formats a wei amount for display.
func FormatETH(balance *big.Int) string {
	if balance == nil {
		return "unavailable"
	}

	eth := new(big.Float).Quo(new(big.Float).SetInt(balance), weiPerEther)

	return fmt.Sprintf("%.4f ETH (%s wei)", eth, balance.String())
}
