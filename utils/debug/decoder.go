package debug

func PanicDecoderWrapper(wrapped func(msg interface{}) error) func(msg interface{}) error {
	return func(msg interface{}) (err error) {
		defer func() {
			if pErr := recover(); pErr != nil {
				err = Recovered(msg, pErr)
			}
		}()
		err = wrapped(msg)
		return err
	}
}
