package fpmath

import "math/big"

// ComputeMintAmount converts a reserve-currency deposit into synthetic
// units at the cycle's settlement price.
// minted = deposit * priceScale / price (asset and reserve share a scale).
func ComputeMintAmount(depositAmount, price int64) int64 {
	if price <= 0 || depositAmount <= 0 {
		return 0
	}
	temp := MultiplyInt128(depositAmount, PriceConfig.Scale)
	result := DivideInt128(temp, price, RoundHalfEven)
	putInt128(temp)
	return result
}

// ComputeAssetValue values synthetic units in reserve currency at the
// given price.
func ComputeAssetValue(assetAmount, price int64) int64 {
	if price <= 0 || assetAmount <= 0 {
		return 0
	}
	temp := MultiplyInt128(assetAmount, price)
	result := DivideInt128(temp, PriceConfig.Scale, RoundHalfEven)
	putInt128(temp)
	return result
}

// ComputeExposureDelta calculates the change in reserve value of the
// outstanding synthetic supply between the previous settlement price and
// the proposed one. Positive means the pool's liability grew and LPs must
// deposit; negative means LPs withdraw.
func ComputeExposureDelta(assetSupply, prevPrice, price int64) int64 {
	if assetSupply == 0 {
		return 0
	}
	temp := MultiplyInt128(assetSupply, price-prevPrice)
	result := DivideInt128(temp, PriceConfig.Scale, RoundHalfEven)
	putInt128(temp)
	return result
}

// ComputeProportionalShare splits total pro rata by part/whole.
// A zero whole yields zero.
func ComputeProportionalShare(total, part, whole int64) int64 {
	if whole == 0 || total == 0 || part == 0 {
		return 0
	}
	return MulDiv(total, part, whole)
}

// ComputeInterest accrues simple interest on the given reserve value for
// elapsedSeconds at ratePerSecond (rate scale 1e8).
func ComputeInterest(elapsedSeconds, ratePerSecond, reserveValue int64) int64 {
	if elapsedSeconds <= 0 || ratePerSecond == 0 || reserveValue == 0 {
		return 0
	}
	temp := MultiplyInt128(elapsedSeconds, ratePerSecond)
	temp.Mul(temp, big.NewInt(reserveValue))
	result := DivideInt128(temp, RateConfig.Scale, RoundHalfEven)
	putInt128(temp)
	return result
}

// ComputeIndexDelta spreads an interest amount across the synthetic
// supply as an index increment at 1e12 scale.
func ComputeIndexDelta(interest, assetSupply int64) int64 {
	if assetSupply == 0 || interest == 0 {
		return 0
	}
	temp := MultiplyInt128(interest, IndexConfig.Scale)
	result := DivideInt128(temp, assetSupply, RoundHalfEven)
	putInt128(temp)
	return result
}

// ComputeIndexCharge converts an index span back into a reserve amount
// for the given synthetic units.
func ComputeIndexCharge(assetAmount, indexSpan int64) int64 {
	if assetAmount == 0 || indexSpan <= 0 {
		return 0
	}
	temp := MultiplyInt128(assetAmount, indexSpan)
	result := DivideInt128(temp, IndexConfig.Scale, RoundHalfEven)
	putInt128(temp)
	return result
}

// ComputeCollateralRatio returns collateral/deposit at ratio scale 1e6.
// A zero deposit is treated as fully collateralized.
func ComputeCollateralRatio(collateral, deposit int64) int64 {
	if deposit == 0 {
		return int64(1<<62 - 1)
	}
	return MulDiv(collateral, RatioConfig.Scale, deposit)
}

// ApplyRatio rescales an amount by numerator/denominator, used for
// split-discontinuity reconciliation of synthetic balances.
func ApplyRatio(amount, numerator, denominator int64) int64 {
	if amount == 0 {
		return 0
	}
	return MulDiv(amount, numerator, denominator)
}
