// Package radio wraps an nRF24-style 2.4 GHz transceiver behind a
// receive-with-timeout operation.
//
// The hardware itself sits behind the Driver interface. Receiver owns
// the listening lifecycle: Open initialises the chip and the reading
// pipe, Receive puts the chip into listening mode for at most one
// timeout window and returns the first payload, and Stop powers the
// chip down.
//
// Usage:
//
//	rx, err := radio.Open(sim.New(sim.Options{}), cfg, logger)
//	if err != nil {
//	    return err
//	}
//	defer rx.Stop()
//
//	payload, err := rx.Receive(ctx, 5*time.Second)
//	if errors.Is(err, radio.ErrTimeout) {
//	    // nothing arrived this window
//	}
package radio
