// Package mdk is the Metadata Development Kit. It contains the work unit model
// and the post-processing pipeline that every metadata connector runs its
// output through before it reaches a sink.
//
// Of principal importance in the MDK is the processing chain. Each stage wraps
// the stream produced by the stage before it, and interfaces and basic
// implementations of each are included here, while implementations which rely
// on other software (Kafka, S3, BoltDB and friends) live in sub-packages.
//
// 1. Source
//
//    A mdk.Source is at the beginning of every ingestion run. It hands out
//    metadata change events or change proposals one at a time, and
//    AutoWorkUnit wraps each of those into a WorkUnit with a stable id. A
//    connector which already produces WorkUnits can implement Stream directly
//    and skip this step.
//
// 2. Processors
//
//    A Processor takes a Stream and returns a Stream. Every processor passes
//    upstream units through unchanged and in order, and only once its upstream
//    is exhausted does it emit the units it synthesized: status aspects for
//    entities that never got one, tag key aspects for referenced tags,
//    container based browse paths, and soft deletes for entities that
//    disappeared since the last run. DefaultProcessors builds the usual chain.
//
// 3. State
//
//    Stale entity removal needs to remember what a pipeline emitted last time.
//    That memory is a Checkpoint which a StateProvider loads and commits.
//    Providers register themselves by name, the same way database/sql drivers
//    do, so that a recipe can pick one.
//
// 4. Sink
//
//    The Ingester pulls the processed stream to completion and writes every
//    unit to a Sink. Checkpoints are only committed after the whole stream has
//    been written.

package mdk
