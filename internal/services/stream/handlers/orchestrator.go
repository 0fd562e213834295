package handlers

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/argoproxy/goproxy/internal/services/stream/contracts"
	"github.com/argoproxy/goproxy/internal/utils"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// StreamOrchestrator coordinates the streaming pipeline: reader chunks in,
// processor frames, writer flushes. Every frame is fully flushed before
// the next is constructed, so event order on the wire matches issue order.
type StreamOrchestrator struct {
	reader    contracts.StreamReader
	processor contracts.ChunkProcessor
	requestID string
}

// NewStreamOrchestrator creates a new stream orchestrator.
func NewStreamOrchestrator(reader contracts.StreamReader, processor contracts.ChunkProcessor, requestID string) *StreamOrchestrator {
	return &StreamOrchestrator{
		reader:    reader,
		processor: processor,
		requestID: requestID,
	}
}

// Handle runs the pipeline to completion or disconnect.
func (s *StreamOrchestrator) Handle(ctx context.Context, writer contracts.StreamWriter) error {
	startTime := time.Now()
	var totalChunks int64
	var totalBytes int64

	buf := utils.Get()
	defer utils.Put(buf)

	if cap(buf.B) < 32768 {
		buf.B = make([]byte, 32768)
	} else {
		buf.B = buf.B[:32768]
	}
	buffer := buf.B

	defer func() {
		duration := time.Since(startTime)
		fiberlog.Infof("[%s] Stream completed: %d chunks, %d bytes in %v",
			s.requestID, totalChunks, totalBytes, duration)

		if err := s.reader.Close(); err != nil {
			fiberlog.Errorf("[%s] Error closing reader: %v", s.requestID, err)
		}
		if err := writer.Close(); err != nil && !contracts.IsExpectedError(err) {
			fiberlog.Errorf("[%s] Error closing writer: %v", s.requestID, err)
		}
	}()

	prologue, err := s.processor.Begin(ctx)
	if err != nil {
		return contracts.NewInternalError(s.requestID, "stream prologue failed", err)
	}
	if n, err := s.emit(writer, prologue); err != nil {
		return err
	} else {
		totalBytes += n
	}

	for {
		select {
		case <-ctx.Done():
			fiberlog.Infof("[%s] Context cancelled, stopping stream", s.requestID)
			return contracts.NewClientDisconnectError(s.requestID)
		default:
		}

		n, err := s.reader.Read(buffer)
		if n > 0 {
			processed, perr := s.processor.Process(ctx, buffer[:n])
			if perr != nil {
				if errors.Is(perr, context.Canceled) {
					return contracts.NewClientDisconnectError(s.requestID)
				}
				return contracts.NewInternalError(s.requestID, "chunk processing failed", perr)
			}
			written, werr := s.emit(writer, processed)
			if werr != nil {
				return werr
			}
			totalChunks++
			totalBytes += written
		}

		if err == io.EOF {
			epilogue, eerr := s.processor.Finish(ctx)
			if eerr != nil {
				return contracts.NewInternalError(s.requestID, "stream epilogue failed", eerr)
			}
			if written, werr := s.emit(writer, epilogue); werr != nil {
				return werr
			} else {
				totalBytes += written
			}
			fiberlog.Infof("[%s] Stream completed naturally", s.requestID)
			return contracts.NewStreamCompleteError(s.requestID)
		}
		if err != nil {
			return contracts.NewUpstreamError(s.requestID, err)
		}
	}
}

// emit writes and flushes one framed batch, classifying disconnects.
func (s *StreamOrchestrator) emit(writer contracts.StreamWriter, data []byte) (int64, error) {
	if len(data) == 0 {
		return 0, nil
	}
	if err := writer.Write(data); err != nil {
		if contracts.IsClientDisconnect(err) {
			fiberlog.Infof("[%s] Client disconnected during write", s.requestID)
			return 0, err
		}
		return 0, contracts.NewInternalError(s.requestID, "write failed", err)
	}
	if err := writer.Flush(); err != nil {
		if contracts.IsClientDisconnect(err) {
			fiberlog.Infof("[%s] Client disconnected during flush", s.requestID)
			return 0, err
		}
		return 0, contracts.NewInternalError(s.requestID, "flush failed", err)
	}
	return int64(len(data)), nil
}

// RequestID returns the request ID.
func (s *StreamOrchestrator) RequestID() string {
	return s.requestID
}
