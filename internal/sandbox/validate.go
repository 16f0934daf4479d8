package sandbox

// validateResult normalizes whatever came back from the script into a
// well-formed Result. Malformed values are substituted with a hold signal
// rather than propagated; this is the safety boundary that keeps the signal
// inside the three-valued enum.
func validateResult(raw any) Result {
	obj, ok := raw.(map[string]any)
	if !ok {
		return Result{Signal: SignalHold, Reason: "Invalid strategy result"}
	}

	sig, _ := obj["signal"].(string)
	if !Signal(sig).Valid() {
		return Result{Signal: SignalHold, Reason: "Invalid signal value"}
	}

	res := Result{Signal: Signal(sig)}
	if v, ok := toNumber(obj["amount"]); ok && v > 0 {
		res.Amount = v
	}
	if s, ok := obj["reason"].(string); ok {
		res.Reason = s
	}
	if v, ok := toNumber(obj["stopLoss"]); ok {
		res.StopLoss = v
	}
	if v, ok := toNumber(obj["takeProfit"]); ok {
		res.TakeProfit = v
	}
	if m, ok := obj["indicators"].(map[string]any); ok {
		ind := make(map[string]float64, len(m))
		for k, v := range m {
			if f, ok := toNumber(v); ok {
				ind[k] = f
			}
		}
		if len(ind) > 0 {
			res.Indicators = ind
		}
	}
	return res
}

// holdOnError folds any evaluation failure into the hold result the caller
// logs. The reason prefix is a stable convention downstream consumers parse.
func holdOnError(err error) Result {
	return Result{Signal: SignalHold, Reason: "Execution error: " + err.Error()}
}

// toNumber handles the numeric kinds goja's Export produces.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
