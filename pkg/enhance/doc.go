// Package enhance rewrites assembled clause prose through an external text
// generator without blocking assembly.
//
// Queue.Enqueue records a pending job against the policy's current revision
// and returns at once. Worker claims jobs, rewrites clause bodies in small
// concurrent batches and applies the result only if the policy is still at
// the job's revision; otherwise the job is marked superseded and the policy
// is left alone. Which clauses a policy contains is never changed here.
//
//	queue := enhance.NewQueue(store, logger)
//	worker := enhance.NewWorker(store, generator, cfg, logger).WithWake(queue.Wake())
//	go worker.Run(ctx)
//	job, err := queue.Enqueue(ctx, p)
package enhance
