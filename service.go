package harp

import "context"

// StartService connects to (host, port) and spawns the agent's Run loop in
// the background, returning a Sender immediately. It mirrors the ergonomics
// of the original create_service! convenience macro, which Go expresses as
// a constructor rather than a macro.
func StartService(ctx context.Context, opts Options) (Sender, error) {
	agent, err := ConnectWithOptions(ctx, opts)
	if err != nil {
		return Sender{}, err
	}

	go func() {
		_ = agent.Run(ctx)
	}()

	return agent.Sender(), nil
}
