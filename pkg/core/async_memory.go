package core

import (
	"context"
	"sync"
)

// AsyncClient provides asynchronous RecallMem operations.
//
// It wraps the synchronous Client and executes each operation in its own
// goroutine. Every async method returns a buffered channel that receives
// exactly one result and is then closed. Wait blocks until every started
// operation has finished.
//
// Example:
//
//	asyncClient, _ := core.NewAsyncClient(config)
//	defer asyncClient.Close()
//
//	resultChan := asyncClient.RecallAsync(ctx, "support-bot", "reset password")
//	result := <-resultChan
//	if result.Error != nil {
//	    log.Fatal(result.Error)
//	}
type AsyncClient struct {
	*Client
	wg sync.WaitGroup
}

// NewAsyncClient creates a new asynchronous RecallMem client.
//
// Parameters:
//   - cfg: RecallMem configuration
//   - opts: Optional client options
//
// Returns:
//   - *AsyncClient: The asynchronous client instance
//   - error: Error if configuration is invalid or initialization fails
func NewAsyncClient(cfg *Config, opts ...ClientOption) (*AsyncClient, error) {
	client, err := NewClient(cfg, opts...)
	if err != nil {
		return nil, err
	}

	return NewAsyncClientFrom(client), nil
}

// NewAsyncClientFrom wraps an existing client.
func NewAsyncClientFrom(client *Client) *AsyncClient {
	return &AsyncClient{
		Client: client,
	}
}

// AddAsync adds an entry asynchronously.
//
// Returns:
//   - <-chan *EntryResult: Channel that receives the stored entry and error
func (ac *AsyncClient) AddAsync(ctx context.Context, entry *MemoryEntry, opts ...AddOption) <-chan *EntryResult {
	resultChan := make(chan *EntryResult, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		stored, err := ac.Add(ctx, entry, opts...)
		resultChan <- &EntryResult{
			Entry: stored,
			Error: err,
		}
		close(resultChan)
	}()

	return resultChan
}

// RecallAsync recalls entries asynchronously.
//
// Returns:
//   - <-chan *RecallAsyncResult: Channel that receives the recall result and error
func (ac *AsyncClient) RecallAsync(ctx context.Context, agentID, query string, opts ...RecallOption) <-chan *RecallAsyncResult {
	resultChan := make(chan *RecallAsyncResult, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		result, err := ac.Recall(ctx, agentID, query, opts...)
		resultChan <- &RecallAsyncResult{
			Result: result,
			Error:  err,
		}
		close(resultChan)
	}()

	return resultChan
}

// CleanupAsync runs a cleanup asynchronously. Cancelling ctx stops it
// between delete batches.
//
// Returns:
//   - <-chan *CleanupAsyncResult: Channel that receives the cleanup result and error
func (ac *AsyncClient) CleanupAsync(ctx context.Context, agentID string, opts ...CleanupOption) <-chan *CleanupAsyncResult {
	resultChan := make(chan *CleanupAsyncResult, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		result, err := ac.Cleanup(ctx, agentID, opts...)
		resultChan <- &CleanupAsyncResult{
			Result: result,
			Error:  err,
		}
		close(resultChan)
	}()

	return resultChan
}

// GetAsync retrieves an entry by ID asynchronously.
func (ac *AsyncClient) GetAsync(ctx context.Context, agentID, id string, opts ...GetOption) <-chan *EntryResult {
	resultChan := make(chan *EntryResult, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		entry, err := ac.Get(ctx, agentID, id, opts...)
		resultChan <- &EntryResult{
			Entry: entry,
			Error: err,
		}
		close(resultChan)
	}()

	return resultChan
}

// DeleteAsync deletes an entry by ID asynchronously.
func (ac *AsyncClient) DeleteAsync(ctx context.Context, agentID, id string, opts ...DeleteOption) <-chan *DeleteAsyncResult {
	resultChan := make(chan *DeleteAsyncResult, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		removed, err := ac.Delete(ctx, agentID, id, opts...)
		resultChan <- &DeleteAsyncResult{
			Success: removed,
			Error:   err,
		}
		close(resultChan)
	}()

	return resultChan
}

// Wait waits for all asynchronous operations to complete.
//
// This method blocks until all goroutines started by async methods have finished.
// It should be called before program exit to ensure all operations complete.
func (ac *AsyncClient) Wait() {
	ac.wg.Wait()
}

// Close closes the asynchronous client.
//
// It first waits for all asynchronous operations to complete, then closes the underlying client.
func (ac *AsyncClient) Close() error {
	ac.Wait()
	return ac.Client.Close()
}

// EntryResult contains the result of an entry operation.
type EntryResult struct {
	// Entry is the entry returned by the operation (nil if error occurred).
	Entry *MemoryEntry

	// Error is the error returned by the operation (nil if operation succeeded).
	Error error
}

// RecallAsyncResult contains the result of an asynchronous recall.
type RecallAsyncResult struct {
	// Result may be non-nil alongside Error when the access bump failed.
	Result *RecallResult
	Error  error
}

// CleanupAsyncResult contains the result of an asynchronous cleanup.
type CleanupAsyncResult struct {
	// Result may be non-nil alongside Error on partial deletion or cancellation.
	Result *CleanupResult
	Error  error
}

// DeleteAsyncResult contains the result of an asynchronous delete.
type DeleteAsyncResult struct {
	Success bool
	Error   error
}
